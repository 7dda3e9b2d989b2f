package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/fred-refresh/internal/model"
)

// entry is one metrics_to_track element before validation.
type entry struct {
	ID              string `json:"id" validate:"nonblank,fredid"`
	Name            string `json:"name" validate:"nonblank"`
	Description     string `json:"description" validate:"nonblank,max=200"`
	Category        string `json:"category" validate:"nonblank,category"`
	Units           string `json:"units" validate:"nonblank"`
	UpdateFrequency string `json:"update_frequency" validate:"nonblank,frequency"`
	YayMessage      string `json:"yay_message" validate:"nonblank,max=100"`
	MehMessage      string `json:"meh_message" validate:"nonblank,max=100"`
	NayMessage      string `json:"nay_message" validate:"nonblank,max=100"`
}

func (e entry) descriptor() model.MetricDescriptor {
	return model.MetricDescriptor{
		ID:              e.ID,
		Name:            e.Name,
		Description:     e.Description,
		Category:        model.Category(e.Category),
		Units:           e.Units,
		UpdateFrequency: model.Frequency(e.UpdateFrequency),
		YayMessage:      e.YayMessage,
		MehMessage:      e.MehMessage,
		NayMessage:      e.NayMessage,
	}
}

// requiredFields lists the entry keys in the order problems are reported.
var requiredFields = []string{
	"id", "name", "description", "category", "units",
	"update_frequency", "yay_message", "meh_message", "nay_message",
}

var seriesIDPattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		})
		_ = validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = validate.RegisterValidation("fredid", func(fl validator.FieldLevel) bool {
			return seriesIDPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return model.Category(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
			return model.Frequency(fl.Field().String()).Valid()
		})
	})
	return validate
}

// validateEntry checks one raw entry. The returned entry carries whatever
// id could be read so duplicates can still be detected.
func validateEntry(index int, raw any) (entry, []Problem) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return entry{}, []Problem{{Index: index, Message: fmt.Sprintf("Must be an object, got %T", raw)}}
	}

	var problems []Problem
	values := make(map[string]string, len(requiredFields))
	for _, field := range requiredFields {
		v, present := obj[field]
		if !present {
			problems = append(problems, Problem{Index: index, Message: fmt.Sprintf("Missing required field '%s'", field)})
			continue
		}
		switch tv := v.(type) {
		case string:
			values[field] = tv
		case nil:
			values[field] = ""
		default:
			values[field] = fmt.Sprint(tv)
		}
	}
	e := entry{
		ID:              values["id"],
		Name:            values["name"],
		Description:     values["description"],
		Category:        values["category"],
		Units:           values["units"],
		UpdateFrequency: values["update_frequency"],
		YayMessage:      values["yay_message"],
		MehMessage:      values["meh_message"],
		NayMessage:      values["nay_message"],
	}
	for i := range problems {
		problems[i].ID = e.ID
	}

	err := getValidator().Struct(e)
	if err == nil {
		return e, problems
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return e, append(problems, Problem{Index: index, ID: e.ID, Message: err.Error()})
	}
	for _, fe := range verrs {
		field := fe.Field()
		if _, present := values[field]; !present {
			// Already reported as missing.
			continue
		}
		problems = append(problems, Problem{Index: index, ID: e.ID, Message: translate(fe)})
	}
	return e, problems
}

// translate converts a field error into the message shown to the user.
func translate(fe validator.FieldError) string {
	field := fe.Field()
	value := fe.Value().(string)
	switch fe.Tag() {
	case "nonblank":
		return fmt.Sprintf("Field '%s' is empty", field)
	case "fredid":
		return "Invalid FRED series ID format"
	case "max":
		return fmt.Sprintf("%s too long (%d chars, max %s)", field, utf8.RuneCountInString(value), fe.Param())
	case "category":
		return fmt.Sprintf("Invalid category '%s'. Valid: %s", value, joinValues(model.Categories))
	case "frequency":
		return fmt.Sprintf("Invalid update_frequency '%s'. Valid: %s", value, joinValues(model.Frequencies))
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func joinValues[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
