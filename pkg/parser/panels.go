package parser

import (
	"encoding/json"
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

const (
	fieldDescription = "description"
	fieldVisual      = "visual"
	fieldDialogue    = "dialogue"
	fieldCaption     = "caption"
	fieldText        = "text"
)

// ParsePanels はパネル分割の出力を解析します。
// 描写が空のパネルは捨てられるため、戻り値の件数は出力中のパネル数以下になります。
func ParsePanels(raw string) []domain.PanelScript {
	panels := parseLabelledPanels(raw)
	if len(panels) > 0 {
		return panels
	}
	return parseJSONPanels(raw)
}

func parseLabelledPanels(raw string) []domain.PanelScript {
	var (
		panels  []domain.PanelScript
		current *domain.PanelScript
		field   string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(current.Description)
		current.Dialogue = cleanDialogue(current.Dialogue)
		if current.Description != "" {
			panels = append(panels, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if PanelHeaderRegex.MatchString(trimmed) {
			flush()
			current = &domain.PanelScript{}
			field = ""
			// "PANEL 1: 描写" のように同じ行に内容が続く場合
			if idx := strings.Index(trimmed, ":"); idx != -1 {
				rest := strings.TrimSpace(trimmed[idx+1:])
				if m := FieldRegex.FindStringSubmatch(rest); m != nil {
					field = strings.ToLower(m[1])
					appendField(current, field, m[2])
				} else if rest != "" {
					field = fieldDescription
					appendField(current, field, rest)
				}
			}
			continue
		}
		if current == nil {
			continue
		}

		if m := FieldRegex.FindStringSubmatch(trimmed); m != nil {
			field = strings.ToLower(m[1])
			appendField(current, field, m[2])
			continue
		}
		// ラベルのない行は直前のフィールドの続き
		appendField(current, field, trimmed)
	}
	flush()
	return panels
}

func appendField(p *domain.PanelScript, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch field {
	case fieldDescription, fieldVisual:
		p.Description = joinLine(p.Description, value)
	case fieldDialogue, fieldCaption, fieldText:
		p.Dialogue = joinLine(p.Dialogue, value)
	}
}

func joinLine(base, add string) string {
	if base == "" {
		return add
	}
	return base + " " + add
}

// cleanDialogue は "(none)" などの空を意味する表記を取り除きます。
func cleanDialogue(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(strings.Trim(s, "()[]<>\"'")) {
	case "", "none", "n/a", "-", "empty", "no dialogue", "silent":
		return ""
	}
	return s
}

type jsonPanel struct {
	Description string `json:"description"`
	Dialogue    string `json:"dialogue"`
}

func parseJSONPanels(raw string) []domain.PanelScript {
	body := ExtractJSON(raw)
	var items []jsonPanel
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		var wrapped struct {
			Panels []jsonPanel `json:"panels"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil
		}
		items = wrapped.Panels
	}

	var panels []domain.PanelScript
	for _, it := range items {
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			continue
		}
		panels = append(panels, domain.PanelScript{Description: desc, Dialogue: cleanDialogue(it.Dialogue)})
	}
	return panels
}
