package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	"github.com/drivelink/drivelink-api/pkg/logger"
)

type registrationStore interface {
	GetRegistration(ctx context.Context, phone string) (*models.RegistrationState, error)
	SaveRegistration(ctx context.Context, state *models.RegistrationState, ttl time.Duration) error
	DeleteRegistration(ctx context.Context, phone string) error
}

type registrationStudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
}

type instructorMatcher interface {
	FindBestInstructor(ctx context.Context, licenseClass, location string) (*models.User, error)
}

var licenseOptions = []string{"Class 4 (light vehicle)", "Class 2 (heavy vehicle)", "Motorcycle", "Other"}

// RegistrationFlow walks an unknown phone through onboarding: name, email,
// location, license class, confirmation. Confirming creates the student and
// assigns the best-matching instructor.
type RegistrationFlow struct {
	store     registrationStore
	students  registrationStudentRepository
	matcher   instructorMatcher
	outbound  outboundQueue
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrationFlow constructs a RegistrationFlow.
func NewRegistrationFlow(store registrationStore, students registrationStudentRepository, matcher instructorMatcher, outbound outboundQueue, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *RegistrationFlow {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationFlow{
		store:     store,
		students:  students,
		matcher:   matcher,
		outbound:  outbound,
		ttl:       ttl,
		validator: validate,
		logger:    logger,
	}
}

// Handle advances the registration one step for the given raw message text.
func (f *RegistrationFlow) Handle(ctx context.Context, phone, text string) (Reply, error) {
	state, err := f.store.GetRegistration(ctx, phone)
	if err != nil {
		// Missing or expired state starts over.
		state = &models.RegistrationState{
			Phone:     phone,
			Step:      models.RegStepName,
			CreatedAt: time.Now().UTC(),
		}
		if err := f.store.SaveRegistration(ctx, state, f.ttl); err != nil {
			return Reply{}, err
		}
		return Text("Welcome to DriveLink! Let's get you registered for driving lessons.\n\nWhat's your full name?"), nil
	}

	text = strings.TrimSpace(text)
	switch state.Step {
	case models.RegStepName:
		return f.handleName(ctx, state, text)
	case models.RegStepEmail:
		return f.handleEmail(ctx, state, text)
	case models.RegStepLocation:
		return f.handleLocation(ctx, state, text)
	case models.RegStepLicenseType:
		return f.handleLicenseType(ctx, state, text)
	case models.RegStepConfirmation:
		return f.handleConfirmation(ctx, state, text)
	}

	// Unknown step tag means a stale record from an older build; start over.
	return f.restart(ctx, state)
}

func (f *RegistrationFlow) handleName(ctx context.Context, state *models.RegistrationState, text string) (Reply, error) {
	if len(text) < 2 || !containsLetter(text) {
		return Text("Please send your full name, e.g. 'John Doe'."), nil
	}
	state.Name = text
	state.Step = models.RegStepEmail
	if err := f.store.SaveRegistration(ctx, state, f.ttl); err != nil {
		return Reply{}, err
	}
	return TextF("Thanks %s! What's your email address? Reply 'skip' if you don't have one.", firstName(text)), nil
}

func (f *RegistrationFlow) handleEmail(ctx context.Context, state *models.RegistrationState, text string) (Reply, error) {
	lower := strings.ToLower(text)
	if lower != "skip" && lower != "none" {
		if err := f.validator.Var(text, "email"); err != nil {
			return Text("That doesn't look like an email address. Try again, or reply 'skip'."), nil
		}
		state.Email = lower
	}
	state.Step = models.RegStepLocation
	if err := f.store.SaveRegistration(ctx, state, f.ttl); err != nil {
		return Reply{}, err
	}
	return Text("What area are you in? Send your suburb or town name, e.g. 'Avondale'."), nil
}

func (f *RegistrationFlow) handleLocation(ctx context.Context, state *models.RegistrationState, text string) (Reply, error) {
	if len(text) < 3 || !containsLetter(text) {
		return Text("That doesn't look like an area name. Send your suburb or town, e.g. 'Avondale'."), nil
	}
	state.Location = text
	state.Step = models.RegStepLicenseType
	if err := f.store.SaveRegistration(ctx, state, f.ttl); err != nil {
		return Reply{}, err
	}
	return Reply{Body: "Which license are you working towards?", Options: licenseOptions}, nil
}

func (f *RegistrationFlow) handleLicenseType(ctx context.Context, state *models.RegistrationState, text string) (Reply, error) {
	licenseType, ok := models.LicenseTypeFromChoice(text)
	if !ok {
		return Reply{Body: "Please pick your license class by number:", Options: licenseOptions}, nil
	}
	state.LicenseType = licenseType
	state.Step = models.RegStepConfirmation
	if err := f.store.SaveRegistration(ctx, state, f.ttl); err != nil {
		return Reply{}, err
	}

	email := state.Email
	if email == "" {
		email = "(none)"
	}
	body := "Please confirm your details:\nName: " + state.Name +
		"\nEmail: " + email +
		"\nArea: " + state.Location +
		"\nLicense: " + state.LicenseType
	return Reply{Body: body, Options: []string{"Confirm and register", "Start over"}}, nil
}

func (f *RegistrationFlow) handleConfirmation(ctx context.Context, state *models.RegistrationState, text string) (Reply, error) {
	switch text {
	case "1":
		return f.register(ctx, state)
	case "2":
		return f.restart(ctx, state)
	}
	return Text("Reply 1 to confirm your registration or 2 to start over."), nil
}

func (f *RegistrationFlow) register(ctx context.Context, state *models.RegistrationState) (Reply, error) {
	student := &models.Student{
		Name:            state.Name,
		Phone:           state.Phone,
		CurrentLocation: &state.Location,
		LicenseType:     state.LicenseType,
		IsActive:        true,
	}
	if state.Email != "" {
		student.Email = &state.Email
	}

	instructor, err := f.matcher.FindBestInstructor(ctx, state.LicenseType, state.Location)
	if err != nil {
		f.logger.Sugar().Warnw("no instructor matched at registration", "phone", logger.MaskPhone(state.Phone), "error", err)
	} else {
		student.InstructorID = &instructor.ID
	}

	if err := f.students.Create(ctx, student); err != nil {
		return Reply{}, err
	}
	if err := f.store.DeleteRegistration(ctx, state.Phone); err != nil {
		f.logger.Sugar().Warnw("failed to clear registration state", "phone", logger.MaskPhone(state.Phone), "error", err)
	}

	f.logger.Sugar().Infow("student registered",
		"student_id", student.ID,
		"license_type", student.LicenseType,
		"instructor_assigned", student.InstructorID != nil,
	)

	if instructor != nil && instructor.Phone != nil && *instructor.Phone != "" {
		if err := f.outbound.Send(*instructor.Phone, "New student assigned: "+student.Name+" ("+state.Location+"). Send 'students' to see your list."); err != nil {
			f.logger.Sugar().Warnw("failed to queue instructor notification", "instructor_id", instructor.ID, "error", err)
		}
	}

	body := "You're registered, " + firstName(student.Name) + "! "
	if instructor != nil {
		body += "Your instructor is " + instructor.FullName() + ". "
	}
	body += "Top up your account at the school office, then send 'book' to schedule your first lesson."
	return Text(body), nil
}

func (f *RegistrationFlow) restart(ctx context.Context, state *models.RegistrationState) (Reply, error) {
	*state = models.RegistrationState{
		Phone:     state.Phone,
		Step:      models.RegStepName,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.SaveRegistration(ctx, state, f.ttl); err != nil {
		return Reply{}, err
	}
	return Text("No problem, let's start over. What's your full name?"), nil
}
