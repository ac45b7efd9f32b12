package kitchen

import (
	"context"
	"errors"

	"fridgechef/internal/imagebudget"
	"fridgechef/internal/pantry"
)

var (
	// ErrChefUnavailable wraps failures to reach the AI service.
	ErrChefUnavailable = errors.New("chef unavailable")
	// ErrNoAnalysis is returned by operations that need a fridge analysis first.
	ErrNoAnalysis = errors.New("no fridge data")
	// ErrRecipeNotFound is returned for an unknown recipe id.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrNotCooking is returned when moving between steps without a selected recipe.
	ErrNotCooking = errors.New("no recipe selected")
	// ErrEmptyQuestion is returned when asking the chef nothing.
	ErrEmptyQuestion = errors.New("question is empty")
)

// User-facing messages.
const (
	MsgGeneric        = "Something went wrong. Please try again." // includes malformed model output
	MsgTimeout        = "The chef is taking too long to think. Please try again or switch filters."
	MsgUnavailable    = "Unable to contact the chef. Please check your connection."
	MsgAnalyzeFailed  = "Failed to analyze image. Please try again."
	MsgBadImage       = "We couldn't read that photo. Please try another one."
	MsgAskFailed      = "Sorry, I couldn't reach the chef right now."
	MsgNoFridgeData   = "No fridge data to save!"
	MsgRecipeNotFound = "That recipe is no longer on the menu."
	MsgNoAnalysis     = "Snap your fridge first."
	MsgNotCooking     = "Pick a recipe to cook first."
	MsgEmptyQuestion  = "Ask the chef a question first."
	MsgInvalidSlot    = "Pick a slot between 1 and 3."
	MsgEmptySlot      = "That slot is empty."
)

// UserMessage maps an error to the short message shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	case errors.Is(err, ErrChefUnavailable):
		return MsgUnavailable
	case errors.Is(err, imagebudget.ErrDecode):
		return MsgBadImage
	case errors.Is(err, ErrNoAnalysis):
		return MsgNoAnalysis
	case errors.Is(err, ErrRecipeNotFound):
		return MsgRecipeNotFound
	case errors.Is(err, ErrNotCooking):
		return MsgNotCooking
	case errors.Is(err, ErrEmptyQuestion):
		return MsgEmptyQuestion
	case errors.Is(err, pantry.ErrInvalidSlot):
		return MsgInvalidSlot
	case errors.Is(err, pantry.ErrProfileNotFound):
		return MsgEmptySlot
	default:
		return MsgGeneric
	}
}
