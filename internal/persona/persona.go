// Package persona classifies postings into project archetypes and selects
// the narrative voice used during proposal generation.
package persona

import (
	"regexp"
	"strings"
)

// ProjectType tags a posting with its detected archetype
type ProjectType string

const (
	TypeFullstack ProjectType = "fullstack"
	TypeAI        ProjectType = "ai"
	TypeMobile    ProjectType = "mobile"
	TypeFrontend  ProjectType = "frontend"
	TypeBackend   ProjectType = "backend"
	TypeGeneral   ProjectType = "general"
)

// Profile is the narrative directive attached to an archetype: a voice hint
// shaping tone and emphasis, and one past-work sentence anchoring the
// proposal in relevant experience.
type Profile struct {
	Voice            string
	ExperienceAnchor string
}

// pattern pairs an archetype with its compiled keyword expression. Patterns
// are evaluated in order, first match wins, so more specific archetypes must
// precede the broad ones.
type pattern struct {
	projectType ProjectType
	re          *regexp.Regexp
}

// Controller holds the immutable classification tables. Construct once at
// startup and share freely; all methods are safe for concurrent use.
type Controller struct {
	patterns []pattern
	profiles map[ProjectType]Profile
}

// NewController builds a controller with the built-in pattern tables
func NewController() *Controller {
	return &Controller{
		patterns: []pattern{
			{TypeFullstack, regexp.MustCompile(`fullstack|full stack|full-stack|mern|mean\b|web application|end-to-end`)},
			{TypeAI, regexp.MustCompile(`\bai\b|\bllm\b|\bgpt\b|openai|machine learning|\bnlp\b|computer vision|tensorflow|pytorch|\brag\b|chatbot|langchain|huggingface`)},
			{TypeMobile, regexp.MustCompile(`\bios\b|android|flutter|react native|\bswift\b|kotlin|mobile app|\bipa\b|\bapk\b`)},
			{TypeFrontend, regexp.MustCompile(`react|vue\b|angular|javascript|\bhtml\b|\bcss\b|frontend|ui/ux|figma|tailwind|bootstrap|jquery|\bdom\b`)},
			{TypeBackend, regexp.MustCompile(`python|django|flask|fastapi|node\b|express|\bsql\b|database|\baws\b|backend|\bapi\b|server|postgres|mysql|mongodb|docker`)},
		},
		profiles: map[ProjectType]Profile{
			TypeFullstack: {
				Voice:            "Demonstrate end-to-end capability, from database design to frontend state management.",
				ExperienceAnchor: "I recently shipped a full web application solo, from the Postgres schema through a React dashboard, in six weeks.",
			},
			TypeAI: {
				Voice:            "Highlight hands-on work with LLMs, RAG pipelines, prompt engineering, and Python data stacks.",
				ExperienceAnchor: "I built a retrieval-augmented chatbot handling multi-turn conversations with sub-2-second responses.",
			},
			TypeMobile: {
				Voice:            "Focus on cross-platform performance, native feel, and store deployment experience.",
				ExperienceAnchor: "I have taken three Flutter apps from prototype to published App Store and Play Store releases.",
			},
			TypeFrontend: {
				Voice:            "Focus on UX/UI details, responsiveness, and component reusability; name concrete framework expertise.",
				ExperienceAnchor: "I rebuilt a legacy dashboard as a component-driven React app and cut page load times in half.",
			},
			TypeBackend: {
				Voice:            "Emphasize system architecture, API security, database optimization, and scalability.",
				ExperienceAnchor: "I designed a REST API with 19 endpoints that sustains 100+ concurrent requests in production.",
			},
			TypeGeneral: {
				Voice:            "Professional developer focusing on clean code, timely delivery, and clear communication.",
				ExperienceAnchor: "I have eight years of delivery across varied stacks with consistently on-time handoffs.",
			},
		},
	}
}

// DetectProjectType classifies a posting from its title and description.
// Classification is deterministic: matching is case-insensitive against the
// ordered pattern table, and postings matching nothing are tagged general.
//
// One combination rule: a posting hitting both frontend and backend tables
// without an explicit fullstack mention is still a fullstack project.
func (c *Controller) DetectProjectType(title, description string) ProjectType {
	text := strings.ToLower(title + " " + description)

	var first ProjectType
	matched := make(map[ProjectType]bool, len(c.patterns))
	for _, p := range c.patterns {
		if p.re.MatchString(text) {
			matched[p.projectType] = true
			if first == "" {
				first = p.projectType
			}
		}
	}

	if matched[TypeFrontend] && matched[TypeBackend] {
		return TypeFullstack
	}
	if first == "" {
		return TypeGeneral
	}
	return first
}

// ProfileFor returns the narrative profile for an archetype, falling back
// to the general profile for unknown tags.
func (c *Controller) ProfileFor(projectType ProjectType) Profile {
	if p, ok := c.profiles[projectType]; ok {
		return p
	}
	return c.profiles[TypeGeneral]
}
