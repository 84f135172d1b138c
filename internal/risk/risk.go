// Package risk classifies an account's current betting pattern into an
// advisory tier consumed by outcome policy. Classification is a pure
// function of the account snapshot and the proposed stake; verdicts are
// never persisted or cached.
package risk

// Tier is the advisory risk classification of a single wagering action.
type Tier int

const (
	TierNormal Tier = iota
	TierHigh
	TierExtreme
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "HIGH"
	case TierExtreme:
		return "EXTREME"
	default:
		return "NORMAL"
	}
}

// Trigger tags name the rule(s) that fired. A verdict can carry several.
const (
	TagAllIn           = "ALL_IN"
	TagEscalation      = "ESCALATION"
	TagProfitGuard     = "PROFIT_GUARD"
	TagStreakBreak     = "STREAK_BREAK"
	TagDoublingPattern = "DOUBLING_PATTERN"
	TagRateCorrection  = "RATE_CORRECTION"
)

// Snapshot is the account state the classifier reads. Amounts are minor
// units. Balance is the pre-stake balance.
type Snapshot struct {
	Balance        int64
	TotalDeposited int64
	Profit         int64 // realized net profit (wins minus stakes)
	LastBetAmount  int64
	WinStreak      int
	TotalWagered   int64
	TotalWon       int64
}

// Verdict is the ephemeral classification result.
type Verdict struct {
	Tier Tier
	Tags []string
}

// Config holds the rule thresholds. All of them are tunable business
// parameters, not structural requirements.
type Config struct {
	// AllInPct: stake at or above this percentage of the pre-stake balance.
	AllInPct int64 `env:"RISK_ALL_IN_PCT" envDefault:"90"`
	// EscalationFactor: stake at or above this multiple of the previous stake.
	EscalationFactor int64 `env:"RISK_ESCALATION_FACTOR" envDefault:"5"`
	// ProfitGuardPct: net profit above this percentage of the capital base.
	ProfitGuardPct int64 `env:"RISK_PROFIT_GUARD_PCT" envDefault:"15"`
	// ProfitGuardMinBalance: guard only fires above this balance floor.
	ProfitGuardMinBalance int64 `env:"RISK_PROFIT_GUARD_MIN_BALANCE" envDefault:"10000"`
	// StreakBreakWins: consecutive wins at or above this count.
	StreakBreakWins int `env:"RISK_STREAK_BREAK_WINS" envDefault:"4"`
	// DoublingTolerancePct: stake within this percentage of exactly double
	// the previous stake.
	DoublingTolerancePct int64 `env:"RISK_DOUBLING_TOLERANCE_PCT" envDefault:"10"`
	// RateMinWagered: cumulative wagering floor for the win-rate fallback.
	RateMinWagered int64 `env:"RISK_RATE_MIN_WAGERED" envDefault:"100000"`
	// RateWinPct: long-run won/wagered ratio, in percent, above which the
	// fallback fires.
	RateWinPct int64 `env:"RISK_RATE_WIN_PCT" envDefault:"105"`
}

// DefaultConfig mirrors the envDefault values above.
func DefaultConfig() Config {
	return Config{
		AllInPct:              90,
		EscalationFactor:      5,
		ProfitGuardPct:        15,
		ProfitGuardMinBalance: 10000,
		StreakBreakWins:       4,
		DoublingTolerancePct:  10,
		RateMinWagered:        100000,
		RateWinPct:            105,
	}
}

// Classify evaluates all rules; the worst matching tier wins and every
// matching rule contributes its tag.
func (c Config) Classify(s Snapshot, stake int64) Verdict {
	v := Verdict{Tier: TierNormal}

	if stake <= 0 {
		return v
	}

	raise := func(t Tier, tag string) {
		if t > v.Tier {
			v.Tier = t
		}
		v.Tags = append(v.Tags, tag)
	}

	// Stake consumes nearly the whole bankroll.
	if s.Balance > 0 && stake*100 >= s.Balance*c.AllInPct {
		raise(TierExtreme, TagAllIn)
	}

	// Sudden stake escalation versus the previous bet.
	if s.LastBetAmount > 0 && stake >= s.LastBetAmount*c.EscalationFactor {
		raise(TierExtreme, TagEscalation)
	}

	// Sustained profit against the capital base. For zero-deposit accounts
	// the implied starting bankroll (balance minus realized profit) is the
	// base, so test accounts are judged session-relative.
	base := s.TotalDeposited
	if base <= 0 {
		base = s.Balance - s.Profit
	}
	if base > 0 && s.Balance >= c.ProfitGuardMinBalance && s.Profit*100 > base*c.ProfitGuardPct {
		raise(TierExtreme, TagProfitGuard)
	}

	// Long win streaks.
	if s.WinStreak >= c.StreakBreakWins {
		raise(TierExtreme, TagStreakBreak)
	}

	// Martingale-style doubling: stake within tolerance of 2x previous.
	if s.LastBetAmount > 0 {
		double := s.LastBetAmount * 2
		diff := stake - double
		if diff < 0 {
			diff = -diff
		}
		if diff*100 <= double*c.DoublingTolerancePct {
			raise(TierHigh, TagDoublingPattern)
		}
	}

	// Fallback: long-run win rate over significant cumulative wagering.
	if s.TotalWagered >= c.RateMinWagered && s.TotalWon*100 > s.TotalWagered*c.RateWinPct {
		raise(TierHigh, TagRateCorrection)
	}

	return v
}

// Has reports whether the verdict carries the given trigger tag.
func (v Verdict) Has(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
