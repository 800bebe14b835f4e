package jobs

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"inkwell/internal/services"
)

// ResearchDepth values accepted in preferences.
const (
	DepthLight  = "light"
	DepthMedium = "medium"
	DepthDeep   = "deep"
)

// Preferences captures the owner-submitted knobs that parameterize a run.
type Preferences struct {
	Theme         string `json:"theme" validate:"required,min=2,max=200"`
	TitleStyle    string `json:"title_style" validate:"max=200"`
	AuthorStyle   string `json:"author_style" validate:"max=200"`
	ResearchDepth string `json:"research_depth" validate:"required,oneof=light medium deep"`
}

var validate = validator.New()

// Normalize trims whitespace and lowercases the research depth.
func (p *Preferences) Normalize() {
	p.Theme = strings.TrimSpace(p.Theme)
	p.TitleStyle = strings.TrimSpace(p.TitleStyle)
	p.AuthorStyle = strings.TrimSpace(p.AuthorStyle)
	p.ResearchDepth = strings.ToLower(strings.TrimSpace(p.ResearchDepth))
}

// Validate normalizes then checks the preference invariants. Failures are
// tagged services.ErrValidation so the API surfaces them without retry.
func (p *Preferences) Validate() error {
	p.Normalize()
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		msg := "preferences are invalid"
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			msg = strings.ToLower(fe.Field()) + " failed " + fe.Tag() + " validation"
		}
		return services.Wrap(services.ErrValidation, "preferences", "validate", msg, nil)
	}
	return nil
}
