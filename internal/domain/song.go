package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Defaults applied to optional request fields.
const (
	DefaultDurationTarget = 30
	DefaultDynamic        = "medium"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SongSection is one block of the song structure, e.g. an intro of 4 bars.
type SongSection struct {
	Type        string `json:"type" validate:"required,max=64"`
	Bars        int    `json:"bars" validate:"gt=0,lte=512"`
	Text        string `json:"text,omitempty" validate:"max=8000"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	SingerVoice string `json:"singer_voice,omitempty" validate:"max=200"`
	Dynamic     string `json:"dynamic,omitempty" validate:"max=64"`
}

// MasteringConfig tunes the enhancement chain.
type MasteringConfig struct {
	Cleanliness string `json:"cleanliness,omitempty" validate:"max=64"`
	Clarity     string `json:"clarity,omitempty" validate:"max=64"`
	BassBoost   bool   `json:"bass_boost"`
}

// SongRequest is a submission for one generation job.
type SongRequest struct {
	Title                string           `json:"title" validate:"required,max=200"`
	Tempo                int              `json:"tempo" validate:"gt=0,lte=400"`
	Genre                string           `json:"genre" validate:"required,max=100"`
	DurationTarget       int              `json:"duration_target,omitempty" validate:"gte=0,lte=900"`
	Structure            []SongSection    `json:"structure" validate:"required,min=1,dive"`
	Mastering            *MasteringConfig `json:"mastering,omitempty"`
	Inspiration          string           `json:"inspiration,omitempty" validate:"max=4000"`
	VocalProcessing      string           `json:"vocal_processing,omitempty" validate:"max=2000"`
	GenerationParameters map[string]any   `json:"generation_parameters,omitempty"`
}

// UnmarshalJSON accepts the legacy "bpm" key as an alias for tempo.
func (r *SongRequest) UnmarshalJSON(data []byte) error {
	type plain SongRequest
	var aux struct {
		plain
		BPM *int `json:"bpm"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = SongRequest(aux.plain)
	if r.Tempo == 0 && aux.BPM != nil {
		r.Tempo = *aux.BPM
	}
	return nil
}

// WithDefaults returns a copy with optional fields filled in.
func (r SongRequest) WithDefaults() SongRequest {
	if r.DurationTarget == 0 {
		r.DurationTarget = DefaultDurationTarget
	}
	sections := make([]SongSection, len(r.Structure))
	for i, s := range r.Structure {
		if s.Dynamic == "" {
			s.Dynamic = DefaultDynamic
		}
		sections[i] = s
	}
	r.Structure = sections
	return r
}

// Validate checks the structural shape of the request.
func (r SongRequest) Validate() error {
	if len(r.Structure) == 0 {
		return NewValidationError("structure", "must contain at least one section", ErrEmptyStructure)
	}

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		verr := NewValidationError(fieldPath(fe.Namespace()), "failed on the '"+fe.Tag()+"' rule", ErrValidation)
		verr.Tag = fe.Tag()
		return verr
	}
	return NewValidationError("", err.Error(), ErrValidation)
}

// FileStem returns the title in a form safe to embed in a file name.
func (r SongRequest) FileStem() string {
	stem := strings.Map(func(c rune) rune {
		switch {
		case c == ' ':
			return '_'
		case unicode.IsLetter(c), unicode.IsDigit(c), c == '-', c == '_':
			return c
		default:
			return -1
		}
	}, strings.TrimSpace(r.Title))
	if stem == "" {
		return "untitled"
	}
	return stem
}

// fieldPath turns "SongRequest.Structure[0].Bars" into "Structure[0].Bars".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
