package memory

// Question is one item of the intake form.
type Question struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Type        string   `json:"type"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Required    bool     `json:"required"`
}

// Option is one choice of a select question.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// onboardingQuestions is the fixed intake form. The select values line up
// with the CompleteOnboardingRequest validation rules.
var onboardingQuestions = []Question{
	{
		ID:          "why_here",
		Question:    "What brings you here today?",
		Type:        "textarea",
		Placeholder: "Share what you're hoping to achieve...",
		Required:    true,
	},
	{
		ID:       "guidance_type",
		Question: "What type of guidance are you looking for?",
		Type:     "select",
		Options: []Option{
			{Value: "career", Label: "Career growth & direction"},
			{Value: "skills", Label: "Learning new skills"},
			{Value: "goals", Label: "Setting and achieving goals"},
			{Value: "confidence", Label: "Building confidence"},
			{Value: "balance", Label: "Finding balance & clarity"},
		},
		Required: true,
	},
	{
		ID:       "experience_level",
		Question: "How would you describe your current experience level?",
		Type:     "select",
		Options: []Option{
			{Value: "beginner", Label: "Just starting out"},
			{Value: "intermediate", Label: "Some experience"},
			{Value: "advanced", Label: "Experienced, seeking mastery"},
		},
		Required: true,
	},
	{
		ID:       "mentoring_style",
		Question: "What kind of mentoring feels right for you?",
		Type:     "select",
		Options: []Option{
			{Value: "gentle", Label: "Gentle and patient"},
			{Value: "supportive", Label: "Warm and encouraging"},
			{Value: "direct", Label: "Clear and straightforward"},
			{Value: "challenging", Label: "Pushes me to grow"},
		},
		Required: true,
	},
}
