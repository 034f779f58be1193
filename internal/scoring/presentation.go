package scoring

// Style is a display hint for one signal state. These are stable keys the
// dashboard maps to badges, colors, and glyphs; no rendering happens here.
type Style struct {
	Badge string `json:"badge"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var defaultStyle = Style{Badge: "unknown", Color: "gray", Icon: "circle"}

var tierStyles = map[string]Style{
	TierCritical: {Badge: "critical", Color: "red", Icon: "flame"},
	TierNotable:  {Badge: "notable", Color: "amber", Icon: "star"},
	TierLow:      {Badge: "low", Color: "slate", Icon: "minus"},
}

var lifecycleStyles = map[string]Style{
	StageNew:      {Badge: "new", Color: "green", Icon: "sparkles"},
	StageActive:   {Badge: "active", Color: "blue", Icon: "activity"},
	StageCooling:  {Badge: "cooling", Color: "cyan", Icon: "snowflake"},
	StageArchived: {Badge: "archived", Color: "gray", Icon: "archive"},
}

var severityStyles = map[string]Style{
	SeverityHigh:    {Badge: "high", Color: "red", Icon: "alert-triangle"},
	SeverityMedium:  {Badge: "medium", Color: "amber", Icon: "alert-circle"},
	SeverityLow:     {Badge: "low", Color: "slate", Icon: "info"},
	SeverityNeutral: {Badge: "neutral", Color: "gray", Icon: "eye"},
}

// TierStyle returns the display style for a score tier.
func TierStyle(tier string) Style {
	if s, ok := tierStyles[tier]; ok {
		return s
	}
	return defaultStyle
}

// LifecycleStyle returns the display style for a lifecycle stage.
func LifecycleStyle(stage string) Style {
	if s, ok := lifecycleStyles[stage]; ok {
		return s
	}
	return defaultStyle
}

// SeverityStyle returns the display style for an event severity.
func SeverityStyle(severity string) Style {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return defaultStyle
}
