// Package policy holds the reward configuration consumed by the wallet
// engine: reward magnitudes, randomization ranges and daily limits. It is
// loaded once at startup and never mutated afterwards.
package policy

import (
	"log/slog"
)

// RedisKey is where a remote override document may be stored as JSON.
const RedisKey = "rewards:policy"

// Defaults. Coin amounts are whole coin units.
const (
	DefaultCheckinReward     = 50
	DefaultVideoRewardMin    = 10
	DefaultVideoRewardMax    = 20
	DefaultScratchRewardMin  = 5
	DefaultScratchRewardMax  = 50
	DefaultDailyScratchLimit = 3
	DefaultMinWithdrawal     = 10000
	DefaultReferralBonus     = 250
)

type Policy struct {
	checkinReward     int64
	videoMin          int64
	videoMax          int64
	scratchMin        int64
	scratchMax        int64
	dailyScratchLimit int
	minWithdrawal     int64
	referralBonus     int64
}

// Override is the shape of the remote document. Pointer fields so the merge
// is shallow and key-by-key: absent keys keep their defaults.
type Override struct {
	CheckinReward     *int64 `json:"checkin_reward"`
	VideoRewardMin    *int64 `json:"video_reward_min"`
	VideoRewardMax    *int64 `json:"video_reward_max"`
	ScratchRewardMin  *int64 `json:"scratch_reward_min"`
	ScratchRewardMax  *int64 `json:"scratch_reward_max"`
	DailyScratchLimit *int   `json:"daily_scratch_limit"`
	MinWithdrawal     *int64 `json:"min_withdrawal"`
	ReferralBonus     *int64 `json:"referral_bonus"`
}

// Getter is satisfied by cache.Cache.
type Getter interface {
	GetJSON(key string, dest any) (bool, error)
}

func Default() *Policy {
	return &Policy{
		checkinReward:     DefaultCheckinReward,
		videoMin:          DefaultVideoRewardMin,
		videoMax:          DefaultVideoRewardMax,
		scratchMin:        DefaultScratchRewardMin,
		scratchMax:        DefaultScratchRewardMax,
		dailyScratchLimit: DefaultDailyScratchLimit,
		minWithdrawal:     DefaultMinWithdrawal,
		referralBonus:     DefaultReferralBonus,
	}
}

// Load builds the policy from defaults, then applies the remote override if
// one exists. A missing or unreadable override is not a fault: the defaults
// stand and the failure is only logged.
func Load(store Getter, logger *slog.Logger) *Policy {
	p := Default()

	var override Override
	found, err := store.GetJSON(RedisKey, &override)
	if err != nil {
		logger.Error("could not read remote reward policy, using defaults", "error", err)
		return p
	}
	if !found {
		return p
	}

	p.apply(&override)

	if p.videoMin > p.videoMax {
		logger.Error("remote video reward range is inverted, reverting to defaults",
			"min", p.videoMin, "max", p.videoMax)
		p.videoMin, p.videoMax = DefaultVideoRewardMin, DefaultVideoRewardMax
	}
	if p.scratchMin > p.scratchMax {
		logger.Error("remote scratch reward range is inverted, reverting to defaults",
			"min", p.scratchMin, "max", p.scratchMax)
		p.scratchMin, p.scratchMax = DefaultScratchRewardMin, DefaultScratchRewardMax
	}

	return p
}

// apply merges the override key-by-key; remote values win. Non-positive
// values are discarded as they'd break the engine's amount preconditions.
func (p *Policy) apply(o *Override) {
	if o.CheckinReward != nil && *o.CheckinReward > 0 {
		p.checkinReward = *o.CheckinReward
	}
	if o.VideoRewardMin != nil && *o.VideoRewardMin > 0 {
		p.videoMin = *o.VideoRewardMin
	}
	if o.VideoRewardMax != nil && *o.VideoRewardMax > 0 {
		p.videoMax = *o.VideoRewardMax
	}
	if o.ScratchRewardMin != nil && *o.ScratchRewardMin > 0 {
		p.scratchMin = *o.ScratchRewardMin
	}
	if o.ScratchRewardMax != nil && *o.ScratchRewardMax > 0 {
		p.scratchMax = *o.ScratchRewardMax
	}
	if o.DailyScratchLimit != nil && *o.DailyScratchLimit > 0 {
		p.dailyScratchLimit = *o.DailyScratchLimit
	}
	if o.MinWithdrawal != nil && *o.MinWithdrawal > 0 {
		p.minWithdrawal = *o.MinWithdrawal
	}
	if o.ReferralBonus != nil && *o.ReferralBonus > 0 {
		p.referralBonus = *o.ReferralBonus
	}
}

func (p *Policy) CheckinReward() int64 { return p.checkinReward }

func (p *Policy) VideoRewardRange() (int64, int64) { return p.videoMin, p.videoMax }

func (p *Policy) ScratchRewardRange() (int64, int64) { return p.scratchMin, p.scratchMax }

func (p *Policy) DailyScratchLimit() int { return p.dailyScratchLimit }

func (p *Policy) MinWithdrawal() int64 { return p.minWithdrawal }

func (p *Policy) ReferralBonus() int64 { return p.referralBonus }
