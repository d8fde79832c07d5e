package prompts

import (
	_ "embed"
)

// テンプレートのモード名
const (
	ModePersona      = "persona"
	ModeNarrative    = "narrative"
	ModePanels       = "panels"
	ModeEntities     = "entities"
	ModeSynthesis    = "synthesis"
	ModeContinuation = "continuation"
	ModePlan         = "plan"
	ModeRewrite      = "rewrite"
	ModeVerify       = "verify"
)

var (
	//go:embed templates/persona.md
	personaPrompt string
	//go:embed templates/narrative.md
	narrativePrompt string
	//go:embed templates/panels.md
	panelsPrompt string
	//go:embed templates/entities.md
	entitiesPrompt string
	//go:embed templates/synthesis.md
	synthesisPrompt string
	//go:embed templates/continuation.md
	continuationPrompt string
	//go:embed templates/plan.md
	planPrompt string
	//go:embed templates/rewrite.md
	rewritePrompt string
	//go:embed templates/verify.md
	verifyPrompt string
)

var allTemplates = map[string]string{
	ModePersona:      personaPrompt,
	ModeNarrative:    narrativePrompt,
	ModePanels:       panelsPrompt,
	ModeEntities:     entitiesPrompt,
	ModeSynthesis:    synthesisPrompt,
	ModeContinuation: continuationPrompt,
	ModePlan:         planPrompt,
	ModeRewrite:      rewritePrompt,
	ModeVerify:       verifyPrompt,
}

// PersonaData はペルソナ用システム指示に埋め込む情報です。
type PersonaData struct {
	Name  string
	Role  string
	Focus string
}

// ContributionData は統合プロンプトに並べる各ペルソナの出力です。
type ContributionData struct {
	Name   string
	Focus  string
	Output string
}

// TemplateData はテンプレートに渡すデータ構造です。モードごとに使う項目だけ埋めます。
type TemplateData struct {
	Premise       string
	Genre         string
	TargetCount   int
	KnownEntities []string
	Context       string

	ChapterNumber  int
	TotalChapters  int
	ChapterTitle   string
	ChapterSummary string
	PlanTitle      string
	PlanSynopsis   string

	Persona       PersonaData
	Contributions []ContributionData

	Existing string
	From     int
	To       int

	Selection   string
	Instruction string

	SubjectName        string
	SubjectRole        string
	SubjectDescription string
}
