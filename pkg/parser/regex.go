package parser

import "regexp"

var (
	// PanelHeaderRegex は "PANEL 1" / "## Panel 2:" / "**Panel 3**" 形式のパネル区切り行に一致します。
	PanelHeaderRegex = regexp.MustCompile(`(?i)^[#*\s]*panel\s+(\d+)\b`)

	// FieldRegex は "Description: ..." 形式のフィールド行をキャプチャします。
	FieldRegex = regexp.MustCompile(`(?i)^[-*\s]*\**(description|visual|dialogue|caption|text)\**\s*:\s*(.*)$`)

	// jsonBlockRegex は ```json ... ``` で囲まれたブロックをキャプチャします。
	jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")
)
