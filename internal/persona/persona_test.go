package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectProjectType(t *testing.T) {
	ctrl := NewController()

	tests := []struct {
		name        string
		title       string
		description string
		want        ProjectType
	}{
		{
			name:        "explicit fullstack",
			title:       "Full stack developer needed",
			description: "MERN stack web application",
			want:        TypeFullstack,
		},
		{
			name:        "frontend plus backend implies fullstack",
			title:       "React dashboard",
			description: "Talks to a Django API with a Postgres database",
			want:        TypeFullstack,
		},
		{
			name:        "ai project",
			title:       "Chatbot with RAG",
			description: "LangChain pipeline over our docs, OpenAI models",
			want:        TypeAI,
		},
		{
			name:        "mobile project",
			title:       "Flutter app",
			description: "Publish to App Store and Play Store",
			want:        TypeMobile,
		},
		{
			name:        "pure frontend",
			title:       "Landing page polish",
			description: "Tailwind CSS styling and responsive tweaks",
			want:        TypeFrontend,
		},
		{
			name:        "pure backend",
			title:       "FastAPI microservice",
			description: "Dockerized Python service with MySQL",
			want:        TypeBackend,
		},
		{
			name:        "no signal defaults to general",
			title:       "Write product descriptions",
			description: "Catchy copy for our catalogue",
			want:        TypeGeneral,
		},
		{
			name:        "ai wins over backend when both match",
			title:       "LLM integration",
			description: "Add GPT summaries to our Python backend",
			want:        TypeAI,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ctrl.DetectProjectType(tc.title, tc.description))
		})
	}
}

func TestDetectProjectTypeIsDeterministic(t *testing.T) {
	ctrl := NewController()
	title, desc := "Automation with Python and React", "Scripts plus UI work"

	first := ctrl.DetectProjectType(title, desc)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ctrl.DetectProjectType(title, desc))
	}
}

func TestProfileFor(t *testing.T) {
	ctrl := NewController()

	ai := ctrl.ProfileFor(TypeAI)
	assert.Contains(t, ai.Voice, "RAG")
	assert.NotEmpty(t, ai.ExperienceAnchor)

	// Unknown tags fall back to the general profile.
	unknown := ctrl.ProfileFor(ProjectType("devops"))
	assert.Equal(t, ctrl.ProfileFor(TypeGeneral), unknown)
}
