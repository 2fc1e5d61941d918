// Package checkout drives the two-step checkout: contact details, delivery
// address, then submission of the order.
package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"SliceSizzle/internal/orders"
)

type Phase int

const (
	CollectingContact Phase = iota
	CollectingAddress
	Submitting
	Complete
	Failed
)

func (p Phase) String() string {
	switch p {
	case CollectingContact:
		return "contact"
	case CollectingAddress:
		return "address"
	case Submitting:
		return "submitting"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Form holds every field the customer fills in across both steps.
type Form struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode" validate:"required"`
	Notes     string `json:"notes"`
}

var (
	contactFields = []string{"FirstName", "LastName", "Email", "Phone"}
	addressFields = []string{"Address", "City", "ZipCode"}
)

func (f Form) trimmed() Form {
	return Form{
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
		Address:   strings.TrimSpace(f.Address),
		City:      strings.TrimSpace(f.City),
		State:     strings.TrimSpace(f.State),
		ZipCode:   strings.TrimSpace(f.ZipCode),
		Notes:     strings.TrimSpace(f.Notes),
	}
}

func (f Form) Customer() orders.Customer {
	t := f.trimmed()
	return orders.Customer{
		FirstName: t.FirstName,
		LastName:  t.LastName,
		Email:     t.Email,
		Phone:     t.Phone,
		Address:   t.Address,
		City:      t.City,
		State:     t.State,
		ZipCode:   t.ZipCode,
		Notes:     t.Notes,
	}
}

// State is the whole checkout at one moment. Failed is shown as the address
// step with Err as the message.
type State struct {
	Phase   Phase
	Form    Form
	OrderID string
	Err     string
}

func Initial() State { return State{Phase: CollectingContact} }

// Step is the form page to show: 1 for contact, 2 for address (also while
// submitting or after a failure), 0 once complete.
func (s State) Step() int {
	switch s.Phase {
	case CollectingContact:
		return 1
	case Complete:
		return 0
	default:
		return 2
	}
}

func (s State) Busy() bool { return s.Phase == Submitting }

// Event is anything that can move the checkout.
type Event interface{ event() }

type (
	NextStep        struct{}
	PrevStep        struct{}
	Submit          struct{}
	SubmitSucceeded struct{ OrderID string }
	SubmitFailed    struct{ Reason string }
	Reset           struct{}
	Edit            struct{ Form Form }
)

func (NextStep) event()        {}
func (PrevStep) event()        {}
func (Submit) event()          {}
func (SubmitSucceeded) event() {}
func (SubmitFailed) event()    {}
func (Reset) event()           {}
func (Edit) event()            {}

var (
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrIncompleteForm    = errors.New("checkout form incomplete")
)

// Transition applies e to s. An event that is not allowed in the current
// phase returns ErrInvalidTransition and s unchanged. A form that fails the
// step's checks returns ErrIncompleteForm and s with Err set.
func Transition(s State, e Event) (State, error) {
	switch e := e.(type) {
	case Reset:
		return Initial(), nil

	case Edit:
		switch s.Phase {
		case CollectingContact, CollectingAddress, Failed:
			s.Form = e.Form
			return s, nil
		}

	case NextStep:
		if s.Phase == CollectingContact {
			if msg := checkFields(s.Form, contactFields); msg != "" {
				s.Err = msg
				return s, fmt.Errorf("%w: %s", ErrIncompleteForm, msg)
			}
			s.Phase, s.Err = CollectingAddress, ""
			return s, nil
		}

	case PrevStep:
		switch s.Phase {
		case CollectingAddress, Failed:
			s.Phase, s.Err = CollectingContact, ""
			return s, nil
		}

	case Submit:
		switch s.Phase {
		case CollectingAddress, Failed:
			if msg := checkFields(s.Form, addressFields); msg != "" {
				s.Err = msg
				return s, fmt.Errorf("%w: %s", ErrIncompleteForm, msg)
			}
			s.Phase, s.Err = Submitting, ""
			return s, nil
		}

	case SubmitSucceeded:
		if s.Phase == Submitting && e.OrderID != "" {
			s.Phase, s.OrderID, s.Err = Complete, e.OrderID, ""
			return s, nil
		}

	case SubmitFailed:
		if s.Phase == Submitting {
			s.Phase, s.Err = Failed, e.Reason
			return s, nil
		}
	}

	return s, fmt.Errorf("%w: %T in %s", ErrInvalidTransition, e, s.Phase)
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// checkFields returns a customer facing message for the first failing field,
// or "" when all listed fields pass.
func checkFields(f Form, fields []string) string {
	err := formValidator.StructPartial(f.trimmed(), fields...)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Please check your details"
	}
	fe := verrs[0]
	if fe.Tag() == "email" {
		return "Please enter a valid email address"
	}
	return fmt.Sprintf("Please fill in %s", fieldLabels[fe.Field()])
}

var fieldLabels = map[string]string{
	"firstName": "your first name",
	"lastName":  "your last name",
	"email":     "your email",
	"phone":     "your phone number",
	"address":   "your street address",
	"city":      "your city",
	"zipCode":   "your ZIP code",
}
