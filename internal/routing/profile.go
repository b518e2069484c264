package routing

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/xvoid/internal/cluster"
)

// Range is an inclusive integer range.
type Range struct {
	Min int64 `yaml:"min" json:"min"`
	Max int64 `yaml:"max" json:"max"`
}

func (r Range) validate(name string) error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("%s range [%d, %d] is invalid", name, r.Min, r.Max)
	}
	return nil
}

// Profile is the obfuscation recipe for one privacy tier.
type Profile struct {
	DelayMs       Range `yaml:"delay_ms" json:"delayMs"`
	ShadowWallets Range `yaml:"shadow_wallets" json:"shadowWallets"`
	NoiseTxs      Range `yaml:"noise_txs" json:"noiseTxs"`
	Fragments     int   `yaml:"fragments" json:"fragments"`
}

// Validate checks the profile for internally consistent ranges.
func (p Profile) Validate() error {
	if p.Fragments < 1 {
		return fmt.Errorf("fragments must be at least 1, got %d", p.Fragments)
	}
	return errors.Join(
		p.DelayMs.validate("delay_ms"),
		p.ShadowWallets.validate("shadow_wallets"),
		p.NoiseTxs.validate("noise_txs"),
	)
}

// Profiles maps each privacy tier to its profile.
type Profiles map[cluster.PrivacyTier]Profile

// DefaultProfiles returns the stock tier table.
func DefaultProfiles() Profiles {
	return Profiles{
		cluster.TierLow: {
			Fragments:     2,
			DelayMs:       Range{Min: 500, Max: 3000},
			ShadowWallets: Range{Min: 0, Max: 0},
			NoiseTxs:      Range{Min: 0, Max: 1},
		},
		cluster.TierMedium: {
			Fragments:     4,
			DelayMs:       Range{Min: 3000, Max: 20000},
			ShadowWallets: Range{Min: 1, Max: 2},
			NoiseTxs:      Range{Min: 1, Max: 2},
		},
		cluster.TierHigh: {
			Fragments:     6,
			DelayMs:       Range{Min: 10000, Max: 60000},
			ShadowWallets: Range{Min: 2, Max: 3},
			NoiseTxs:      Range{Min: 2, Max: 4},
		},
	}
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads a YAML profile table and overlays it on the defaults.
// Tiers missing from the file keep their default profile.
//
//	profiles:
//	  low:
//	    fragments: 3
//	    delay_ms: {min: 250, max: 1000}
//	    shadow_wallets: {min: 0, max: 1}
//	    noise_txs: {min: 0, max: 1}
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profiles %q: %w", path, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles %q: %w", path, err)
	}

	profiles := DefaultProfiles()
	for name, p := range file.Profiles {
		tier, err := cluster.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("profiles %q: %w", path, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profiles %q tier %s: %w", path, tier, err)
		}
		profiles[tier] = p
	}
	return profiles, nil
}
