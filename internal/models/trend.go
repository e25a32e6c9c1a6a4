package models

// TrendInfo describes a Dexcom trend arrow
type TrendInfo struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TrendRate   int    `json:"trendRate"`
}

// Trend codes as sent by Dexcom Share
const (
	TrendNone           = "None"
	TrendDoubleUp       = "DoubleUp"
	TrendSingleUp       = "SingleUp"
	TrendFortyFiveUp    = "FortyFiveUp"
	TrendFlat           = "Flat"
	TrendFortyFiveDown  = "FortyFiveDown"
	TrendSingleDown     = "SingleDown"
	TrendDoubleDown     = "DoubleDown"
	TrendNotComputable  = "NotComputable"
	TrendRateOutOfRange = "RateOutOfRange"
)

var trends = map[string]TrendInfo{
	TrendNone: {
		ID:          TrendNone,
		Symbol:      "—",
		Name:        "No Arrow",
		Description: "No arrow is displayed, typically indicating that the system cannot compute a reliable trend arrow.",
		TrendRate:   0,
	},
	TrendDoubleUp: {
		ID:          TrendDoubleUp,
		Symbol:      "⇈",
		Name:        "Rising Rapidly",
		Description: "Blood sugar is rapidly increasing (+3 ≤ trendRate ≤ +8)",
		TrendRate:   3,
	},
	TrendSingleUp: {
		ID:          TrendSingleUp,
		Symbol:      "↑",
		Name:        "Rising",
		Description: "Blood sugar is increasing at a moderate pace (+2 ≤ trendRate < +3)",
		TrendRate:   2,
	},
	TrendFortyFiveUp: {
		ID:          TrendFortyFiveUp,
		Symbol:      "↗",
		Name:        "Rising Slowly",
		Description: "Blood sugar is slowly increasing (+1 ≤ trendRate < +2)",
		TrendRate:   1,
	},
	TrendFlat: {
		ID:          TrendFlat,
		Symbol:      "→",
		Name:        "Level",
		Description: "Blood sugar is stable or changing very slowly (-1 < trendRate < +1)",
		TrendRate:   0,
	},
	TrendFortyFiveDown: {
		ID:          TrendFortyFiveDown,
		Symbol:      "↘",
		Name:        "Falling Slowly",
		Description: "Blood sugar is slowly decreasing (-1 < trendRate ≤ 0)",
		TrendRate:   -1,
	},
	TrendSingleDown: {
		ID:          TrendSingleDown,
		Symbol:      "↓",
		Name:        "Falling",
		Description: "Blood sugar is decreasing at a moderate pace (-3 < trendRate ≤ -2)",
		TrendRate:   -2,
	},
	TrendDoubleDown: {
		ID:          TrendDoubleDown,
		Symbol:      "⇊",
		Name:        "Falling Rapidly",
		Description: "Blood sugar is rapidly decreasing (-8 < trendRate ≤ -3)",
		TrendRate:   -3,
	},
	TrendNotComputable: {
		ID:          TrendNotComputable,
		Symbol:      "?",
		Name:        "Not Computable",
		Description: "The algorithm is unable to compute a trend arrow",
		TrendRate:   0,
	},
	TrendRateOutOfRange: {
		ID:          TrendRateOutOfRange,
		Symbol:      "!",
		Name:        "Rate Out Of Range",
		Description: "The calculated glucose rate falls outside the range for assigning trend arrows",
		TrendRate:   0,
	},
}

// LookupTrend returns the trend entry for a vendor code.
// Unknown codes map to NotComputable.
func LookupTrend(code string) TrendInfo {
	if info, ok := trends[code]; ok {
		return info
	}
	return trends[TrendNotComputable]
}
