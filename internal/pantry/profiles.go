package pantry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/google/uuid"

	"fridgechef/internal/recipe"
)

const (
	// SlotCount is the number of profile slots, numbered from 1.
	SlotCount = 3
	// MaxNameLen is the longest profile name kept, in characters.
	MaxNameLen = 20

	DefaultProfileName = "Untitled Fridge"
)

var (
	ErrInvalidSlot     = errors.New("invalid profile slot")
	ErrProfileNotFound = errors.New("profile not found")
)

// FridgeProfile is a named snapshot of an analysis kept in one of the slots.
type FridgeProfile struct {
	ID            string                `json:"id"`
	SlotID        int                   `json:"slotId"`
	Name          string                `json:"name"`
	CreatedAt     time.Time             `json:"createdAt"`
	Data          recipe.AnalysisResult `json:"data"`
	DietaryFilter string                `json:"dietaryFilter"`
}

// ValidSlot reports whether slot is one of the profile slots.
func ValidSlot(slot int) bool {
	return slot >= 1 && slot <= SlotCount
}

// NormalizeName trims and clips a profile name, falling back to DefaultProfileName.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLen {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLen]))
	}
	if name == "" {
		return DefaultProfileName
	}
	return name
}

// DefaultName is the automatic name of a profile saved at t, e.g. "Fridge Oct 24 14:30".
func DefaultName(t time.Time) string {
	return fmt.Sprintf("Fridge %s %d:%02d", t.Format("Jan 2"), t.Hour(), t.Minute())
}

// Profiles holds at most one FridgeProfile per slot. It is not safe for concurrent use.
type Profiles struct {
	store    Store
	profiles []FridgeProfile
	now      func() time.Time
}

// LoadProfiles reads the saved profiles from store. Missing or unreadable
// data gives no profiles; entries with an unknown slot are dropped and the
// last entry of a slot wins.
func LoadProfiles(ctx context.Context, store Store) *Profiles {
	var stored []FridgeProfile
	if !loadJSON(ctx, store, ProfilesKey, &stored) {
		stored = nil
	}

	p := &Profiles{store: store, now: time.Now}
	for _, profile := range stored {
		if !ValidSlot(profile.SlotID) {
			log.WithField("slot", profile.SlotID).Warn("dropping stored profile with invalid slot")
			continue
		}
		profile.Name = NormalizeName(profile.Name)
		profile.Data = recipe.Normalize(profile.Data)
		p.profiles = append(withoutSlot(p.profiles, profile.SlotID), profile)
	}
	return p
}

// List returns the profiles ordered by slot.
func (p *Profiles) List() []FridgeProfile {
	out := append(make([]FridgeProfile, 0, len(p.profiles)), p.profiles...)
	sort.Slice(out, func(i, j int) bool { return out[i].SlotID < out[j].SlotID })
	return out
}

// Get returns the profile in slot.
func (p *Profiles) Get(slot int) (FridgeProfile, bool) {
	for _, profile := range p.profiles {
		if profile.SlotID == slot {
			return profile, true
		}
	}
	return FridgeProfile{}, false
}

// Save stores a new profile in slot, replacing whatever was there.
func (p *Profiles) Save(ctx context.Context, slot int, name string, data recipe.AnalysisResult, dietaryFilter string) (FridgeProfile, error) {
	if !ValidSlot(slot) {
		return FridgeProfile{}, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	profile := FridgeProfile{
		ID:            uuid.NewString(),
		SlotID:        slot,
		Name:          NormalizeName(name),
		CreatedAt:     p.now().UTC(),
		Data:          recipe.Normalize(data),
		DietaryFilter: dietaryFilter,
	}

	next := append(withoutSlot(p.profiles, slot), profile)
	if err := p.save(ctx, next); err != nil {
		return FridgeProfile{}, err
	}
	return profile, nil
}

// Rename changes the name of the profile in slot.
func (p *Profiles) Rename(ctx context.Context, slot int, name string) (FridgeProfile, error) {
	if !ValidSlot(slot) {
		return FridgeProfile{}, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	next := append(make([]FridgeProfile, 0, len(p.profiles)), p.profiles...)
	for i := range next {
		if next[i].SlotID != slot {
			continue
		}
		next[i].Name = NormalizeName(name)
		if err := p.save(ctx, next); err != nil {
			return FridgeProfile{}, err
		}
		return next[i], nil
	}
	return FridgeProfile{}, fmt.Errorf("%w: slot %d", ErrProfileNotFound, slot)
}

// Delete clears slot. It reports whether there was a profile to delete.
func (p *Profiles) Delete(ctx context.Context, slot int) (bool, error) {
	if !ValidSlot(slot) {
		return false, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	next := withoutSlot(p.profiles, slot)
	if len(next) == len(p.profiles) {
		return false, nil
	}
	if err := p.save(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Profiles) save(ctx context.Context, next []FridgeProfile) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := p.store.Save(ctx, ProfilesKey, data); err != nil {
		return err
	}
	p.profiles = next
	return nil
}

func withoutSlot(profiles []FridgeProfile, slot int) []FridgeProfile {
	out := make([]FridgeProfile, 0, len(profiles))
	for _, profile := range profiles {
		if profile.SlotID != slot {
			out = append(out, profile)
		}
	}
	return out
}
