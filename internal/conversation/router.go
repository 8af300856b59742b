package conversation

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/models"
	"github.com/drivelink/drivelink-api/internal/service"
	"github.com/drivelink/drivelink-api/pkg/logger"
	"github.com/drivelink/drivelink-api/pkg/phone"
)

// lockStripes bounds the per-phone mutex table. Two phones sharing a stripe
// serialize against each other, which is harmless; messages for one phone
// always serialize, which is the guarantee that matters.
const lockStripes = 128

const genericFailure = "Something went wrong on our side. Please try again in a moment."

type identityResolver interface {
	Resolve(ctx context.Context, phone string) (*service.Identity, error)
}

type dedupClaimer interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// InboundMessage is one webhook delivery, already form-decoded.
type InboundMessage struct {
	From          string
	Body          string
	ButtonText    string
	ButtonPayload string
	MessageSid    string
}

// Router is the entry point for every inbound message: it normalizes the
// sender, deduplicates retried deliveries, resolves the identity and hands
// the message to the right flow while holding the sender's lock.
type Router struct {
	identities   identityResolver
	sessions     *SessionManager
	parser       *Parser
	registration *RegistrationFlow
	studentFlow  *StudentFlow
	instructors  *InstructorFlow
	admins       *AdminFlow
	claims       dedupClaimer
	dedupTTL     time.Duration
	metrics      *service.MetricsService
	logger       *zap.Logger

	locks [lockStripes]sync.Mutex
}

// NewRouter constructs a Router.
func NewRouter(identities identityResolver, sessions *SessionManager, registration *RegistrationFlow, studentFlow *StudentFlow, instructors *InstructorFlow, admins *AdminFlow, claims dedupClaimer, dedupTTL time.Duration, metrics *service.MetricsService, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		identities:   identities,
		sessions:     sessions,
		parser:       NewParser(),
		registration: registration,
		studentFlow:  studentFlow,
		instructors:  instructors,
		admins:       admins,
		claims:       claims,
		dedupTTL:     dedupTTL,
		metrics:      metrics,
		logger:       logger,
	}
}

// HandleMessage processes one inbound message and returns the rendered
// reply text. An empty reply with nil error means the message was a
// duplicate delivery and needs only an acknowledgement.
func (r *Router) HandleMessage(ctx context.Context, msg InboundMessage) (string, error) {
	sender := phone.Normalize(strings.TrimPrefix(msg.From, "whatsapp:"))

	var claimKey string
	if msg.MessageSid != "" {
		claimKey = "msg_" + msg.MessageSid
		first, err := r.claims.ClaimOnce(ctx, claimKey, r.dedupTTL)
		if err != nil {
			return "", err
		}
		if !first {
			r.logger.Sugar().Debugw("duplicate delivery ignored", "message_sid", msg.MessageSid)
			return "", nil
		}
	}

	lock := r.lockFor(sender)
	lock.Lock()
	defer lock.Unlock()

	text := msg.Body
	if msg.ButtonPayload != "" {
		text = msg.ButtonPayload
	} else if msg.ButtonText != "" {
		text = msg.ButtonText
	}

	identity, err := r.identities.Resolve(ctx, sender)
	if err != nil {
		// Give the claim back: the webhook fails and the transport retries
		// with the same MessageSid, which must not be swallowed as a dupe.
		r.releaseClaim(ctx, claimKey)
		return "", err
	}
	r.metrics.CountInbound(identity.Kind)

	reply, err := r.dispatch(ctx, sender, text, identity)
	if err != nil {
		r.logger.Sugar().Errorw("flow failed", "phone", logger.MaskPhone(sender), "identity", identity.Kind, "error", err)
		return genericFailure, nil
	}
	r.metrics.CountOutbound()
	return reply.Render(), nil
}

func (r *Router) dispatch(ctx context.Context, sender, text string, identity *service.Identity) (Reply, error) {
	switch identity.Kind {
	case service.IdentityStudent:
		return r.dispatchStudent(ctx, sender, text, identity.Student)
	case service.IdentityStaff:
		return r.dispatchStaff(ctx, text, identity.User)
	}
	return r.registration.Handle(ctx, sender, text)
}

func (r *Router) dispatchStudent(ctx context.Context, sender, text string, student *models.Student) (Reply, error) {
	session, err := r.sessions.Load(ctx, sender)
	if err != nil {
		return Reply{}, err
	}

	intent := r.parser.Parse(text, session.State)
	reply, err := r.studentFlow.Handle(ctx, session, student, intent)
	if err != nil {
		// Leave the stored session untouched so a retry resumes cleanly.
		return Reply{}, err
	}
	if err := r.sessions.Save(ctx, session); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (r *Router) dispatchStaff(ctx context.Context, text string, user *models.User) (Reply, error) {
	intent := r.parser.Parse(text, models.StateMainMenu)
	switch user.Role {
	case models.RoleAdmin, models.RoleSuperAdmin:
		return r.admins.Handle(ctx, intent)
	}
	return r.instructors.Handle(ctx, user, intent)
}

func (r *Router) releaseClaim(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := r.claims.Release(ctx, key); err != nil {
		r.logger.Sugar().Errorw("failed to release dedup claim", "key", key, "error", err)
	}
}

func (r *Router) lockFor(sender string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sender)) //nolint:errcheck
	return &r.locks[h.Sum32()%lockStripes]
}
