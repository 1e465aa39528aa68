package validator

import (
	"errors"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// trans is the singleton English translator for validation errors.
var (
	trans     ut.Translator
	setupOnce sync.Once
)

// Setup registers the validator with English translations and the exam
// authoring rules on Gin's binding engine. Safe to call more than once.
func Setup() {
	setupOnce.Do(setup)
}

func setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerExamRules(v)
	}
}

func registerExamRules(v *govalidator.Validate) {
	_ = v.RegisterValidation("education_level", func(fl govalidator.FieldLevel) bool {
		return ValidEducationLevel(fl.Field().String())
	})
	v.RegisterStructValidation(questionInputRule, model.QuestionInput{})

	messages := map[string]string{
		"education_level":  "{0} must be grade_1 through grade_12 or university",
		"mc_min_options":   "{0} must list at least two options for a multiple-choice question",
		"mc_correct":       "{0} must be one of the options",
		"tf_correct":       "{0} must be true or false",
		"required_correct": "{0} is required for this question type",
	}
	for tag, msg := range messages {
		_ = v.RegisterTranslation(tag, trans,
			func(u ut.Translator) error { return u.Add(tag, msg, true) },
			func(u ut.Translator, fe govalidator.FieldError) string {
				t, _ := u.T(fe.Tag(), fe.Field())
				return t
			})
	}
}

// ValidEducationLevel reports whether s names a supported grade band.
func ValidEducationLevel(s string) bool {
	if s == string(model.EducationLevelUniversity) {
		return true
	}
	n, ok := strings.CutPrefix(s, "grade_")
	if !ok {
		return false
	}
	grade, err := strconv.Atoi(n)
	return err == nil && grade >= 1 && grade <= 12 && strconv.Itoa(grade) == n
}

// questionInputRule enforces the per-type answer constraints.
func questionInputRule(sl govalidator.StructLevel) {
	q := sl.Current().Interface().(model.QuestionInput)
	switch model.QuestionType(q.Type) {
	case model.QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			sl.ReportError(q.Options, "options", "Options", "mc_min_options", "")
			return
		}
		if !slices.Contains(q.Options, q.CorrectAnswer) {
			sl.ReportError(q.CorrectAnswer, "correct_answer", "CorrectAnswer", "mc_correct", "")
		}
	case model.QuestionTypeTrueFalse:
		if a := strings.ToLower(q.CorrectAnswer); a != "true" && a != "false" {
			sl.ReportError(q.CorrectAnswer, "correct_answer", "CorrectAnswer", "tf_correct", "")
		}
	case model.QuestionTypeFillIn, model.QuestionTypeMathEquation:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			sl.ReportError(q.CorrectAnswer, "correct_answer", "CorrectAnswer", "required_correct", "")
		}
	}
}

// TranslateErrors takes a binding/validation error and returns a map of
// field path to human-readable message. Paths drop the root struct name,
// e.g. "questions[1].correct_answer". Non-validation errors map to "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			key := fe.Namespace()
			if _, rest, ok := strings.Cut(key, "."); ok {
				key = rest
			}
			fields[key] = fe.Translate(trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst any) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
