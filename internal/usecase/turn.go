package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"order-agent/internal/catalog"
	"order-agent/internal/domain"
	"order-agent/internal/extract"
	"order-agent/internal/flow"
	"order-agent/internal/order"
	"order-agent/internal/repository"
	"order-agent/internal/tenant"
)

const (
	// sessionTTL rotates a conversation idle outside an active order.
	sessionTTL = 6 * time.Hour
	// midFlowTTL rotates a conversation abandoned mid-order.
	midFlowTTL = 45 * time.Minute
)

// Classifier is the optional LLM intent classifier.
type Classifier interface {
	Classify(ctx context.Context, model string, state domain.State, text string) (domain.Classification, error)
}

// ReplyGenerator is the optional LLM reply rephraser.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, model, template, customerMessage string) (string, error)
}

// Extractor is the optional LLM extraction fallback, consulted only when the
// deterministic extractors found nothing in a message that should carry data.
type Extractor interface {
	ExtractUpdate(ctx context.Context, model, text string) (domain.PartialUpdate, error)
}

// Sender delivers outbound messages to the customer.
type Sender interface {
	Send(ctx context.Context, tenantID, to, text string) error
}

// CatalogSource loads a tenant's priced menu.
type CatalogSource interface {
	LoadCatalog(ctx context.Context) ([]domain.CatalogEntry, error)
}

// Rearmer reschedules the inactivity timers after each turn.
type Rearmer interface {
	Arm(tenantID, channel string, state domain.State)
}

// TenantRuntime bundles one tenant's configuration with its wired clients.
type TenantRuntime struct {
	Config    tenant.Tenant
	Committer *order.Committer
	Catalog   CatalogSource
}

// TurnService runs one conversation turn end to end: classify, extract,
// merge, decide, apply, commit, reply, persist.
type TurnService struct {
	store   repository.Store
	sender  Sender
	tenants map[string]*TenantRuntime
	log     *slog.Logger

	classifier Classifier
	extractor  Extractor
	replies    ReplyGenerator
	timers     Rearmer

	now func() time.Time
}

type Option func(*TurnService)

// WithClassifier enables LLM intent classification for tenants with a model.
func WithClassifier(c Classifier) Option {
	return func(s *TurnService) { s.classifier = c }
}

// WithReplyGenerator enables LLM rephrasing of template replies.
func WithReplyGenerator(r ReplyGenerator) Option {
	return func(s *TurnService) { s.replies = r }
}

// WithExtractor enables the LLM extraction fallback.
func WithExtractor(e Extractor) Option {
	return func(s *TurnService) { s.extractor = e }
}

// NewTurnService creates the service.
func NewTurnService(store repository.Store, sender Sender, tenants map[string]*TenantRuntime, log *slog.Logger, opts ...Option) (*TurnService, error) {
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if len(tenants) == 0 {
		return nil, errors.New("usecase: at least one tenant runtime is required")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &TurnService{
		store:   store,
		sender:  sender,
		tenants: tenants,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetTimers wires the inactivity scheduler. Set after construction because
// the scheduler's callbacks point back at this service.
func (s *TurnService) SetTimers(t Rearmer) {
	s.timers = t
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// retryMessage is the only text sent from the panic boundary; nothing about
// the conversation can be trusted there.
const retryMessage = "Tive um problema aqui agora. Pode mandar sua mensagem de novo?"

// ProcessTurn handles one grouped inbound message for a conversation. A panic
// anywhere in the turn is contained here so one conversation cannot take the
// worker down; the customer gets a generic retry prompt and the persisted
// state stays whatever the last completed turn wrote.
func (s *TurnService) ProcessTurn(ctx context.Context, tenantID, channel, text string) (err error) {
	var rt *TenantRuntime
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("turn panicked", "tenant", tenantID, "channel", channel, "panic", r)
			if rt != nil {
				if sendErr := s.sender.Send(ctx, tenantID, channel, retryMessage); sendErr != nil {
					s.log.Error("retry notice failed", "tenant", tenantID, "err", sendErr)
				}
			}
			err = newError(ErrorInternal, "turn panicked", fmt.Errorf("%v", r))
		}
	}()

	if strings.TrimSpace(text) == "" {
		return newError(ErrorInvalidInput, "empty message", nil)
	}
	var ok bool
	rt, ok = s.tenants[tenantID]
	if !ok {
		return newError(ErrorUnknownTenant, tenantID, nil)
	}
	now := s.now()

	conv, err := s.store.LoadConversation(ctx, tenantID, channel)
	if err != nil {
		return newError(ErrorUpstream, "load conversation", err)
	}
	if conv == nil {
		conv = domain.NewConversation(tenantID, channel, now)
	}
	profile, err := s.store.LoadProfile(ctx, tenantID, channel)
	if err != nil {
		s.log.Warn("profile load failed, proceeding without history", "tenant", tenantID, "err", err)
	}
	if profile == nil {
		profile = &domain.CustomerProfile{TenantID: tenantID, Phone: channel, FirstSeen: now}
	}
	profile.LastSeen = now

	s.rotateIfStale(conv, now)

	hash := contentHash(text)
	if hash == conv.LastProcessedHash {
		// a redelivered group changes nothing and sends nothing
		return nil
	}

	conv.AppendMessage("in", text, now)
	profile.Remember(text)

	class := s.classify(ctx, rt, conv.State, text)

	// a correction turn carries no new field data; running the extractors on
	// its phrasing would read the quantifier words as item mentions
	corr := extract.DetectCorrection(text)

	var upd domain.PartialUpdate
	if class.RequiresExtraction && corr == nil {
		upd = extract.Extract(text)
		if upd.Empty() && s.extractor != nil && rt.Config.Model != "" {
			if llmUpd, lerr := s.extractor.ExtractUpdate(ctx, rt.Config.Model, text); lerr == nil {
				upd = llmUpd
			} else {
				s.log.Warn("llm extraction fallback failed", "tenant", tenantID, "err", lerr)
			}
		}
	}

	s.ensureCatalog(ctx, rt, conv)
	notFound := resolveUpdateItems(&upd, conv.Catalog)

	mergeRes := order.Merge(conv, upd)

	d := flow.Decide(flow.Input{
		Conv:             conv,
		Class:            class,
		Update:           upd,
		Correction:       corr,
		ModeInferred:     mergeRes.ModeInferred,
		Question:         extract.IsQuestion(text),
		Frustrated:       extract.HasFrustration(text),
		LastOrderPreview: lastOrderPreview(profile),
	})

	s.applyEffects(conv, profile, &d, now)

	commitFailed := false
	if d.Action.IsCommit() {
		commitFailed = s.commit(ctx, rt, conv, profile, &d)
	}

	if d.Unactionable || commitFailed {
		conv.ConsecutiveFailures++
	} else if d.Action.Kind != domain.ActionHandoff {
		conv.ConsecutiveFailures = 0
	}

	if d.Next != conv.State {
		if flow.ValidTransition(conv.State, d.Next) {
			conv.State = d.Next
		} else {
			s.log.Warn("blocked invalid transition",
				"tenant", tenantID, "from", conv.State, "to", d.Next)
		}
	}
	conv.StateUpdatedAt = now

	if d.Action.Kind == domain.ActionOrderReview {
		priceCart(conv)
	}

	// once a human owns the thread the engine sends nothing, not even
	// catalog notices
	if len(notFound) > 0 && conv.State != domain.StateHumanHandoff {
		s.reply(ctx, rt, conv, domain.Action{Kind: domain.ActionItemNotFound, Names: notFound}, text, now)
	}
	if d.Action.Kind != "" {
		s.reply(ctx, rt, conv, d.Action, text, now)
	}

	conv.LastProcessedHash = hash
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return newError(ErrorUpstream, "save conversation", err)
	}
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		s.log.Warn("profile save failed", "tenant", tenantID, "err", err)
	}

	if s.timers != nil {
		s.timers.Arm(tenantID, channel, conv.State)
	}
	return nil
}

// rotateIfStale resets abandoned flows so a returning customer starts clean.
// The catalog cache is scoped to the conversation's lifetime, so rotation
// drops it and the next turn fetches fresh prices.
func (s *TurnService) rotateIfStale(conv *domain.Conversation, now time.Time) {
	idle := now.Sub(conv.StateUpdatedAt)
	switch {
	case conv.State.MidFlow() && idle > midFlowTTL:
		s.log.Info("rotating mid-flow conversation", "key", conv.Key(), "idle", idle)
		conv.ResetFlow(now)
		conv.Catalog = nil
	case idle > sessionTTL:
		conv.ResetFlow(now)
		conv.Catalog = nil
	}
}

func (s *TurnService) classify(ctx context.Context, rt *TenantRuntime, state domain.State, text string) domain.Classification {
	if s.classifier != nil && rt.Config.Model != "" {
		class, err := s.classifier.Classify(ctx, rt.Config.Model, state, text)
		if err == nil {
			return class
		}
		s.log.Warn("llm classification failed, using rules", "tenant", rt.Config.ID, "err", err)
	}
	return extract.DetectIntent(state, text)
}

func (s *TurnService) ensureCatalog(ctx context.Context, rt *TenantRuntime, conv *domain.Conversation) {
	if len(conv.Catalog) > 0 || rt.Catalog == nil {
		return
	}
	entries, err := rt.Catalog.LoadCatalog(ctx)
	if err != nil {
		s.log.Warn("catalog load failed", "tenant", conv.TenantID, "err", err)
		return
	}
	conv.Catalog = entries
}

// resolveUpdateItems maps extracted mentions onto catalog names before the
// merge, so cart lines dedupe on the catalog spelling. Unresolved mentions
// are dropped from the update and reported back.
func resolveUpdateItems(upd *domain.PartialUpdate, entries []domain.CatalogEntry) []string {
	if len(upd.Items) == 0 || len(entries) == 0 {
		return nil
	}
	var kept []domain.ItemUpdate
	var notFound []string
	for _, iu := range upd.Items {
		m, ok := catalog.Resolve(iu.Name, entries)
		if !ok {
			notFound = append(notFound, iu.Name)
			continue
		}
		iu.Name = m.Entry.Name
		kept = append(kept, iu)
	}
	upd.Items = kept
	return notFound
}

// priceCart annotates cart lines with catalog prices so the review shows
// real amounts before commit recomputes them authoritatively.
func priceCart(conv *domain.Conversation) {
	res := catalog.ResolveBatch(conv.Transaction.Items, conv.Catalog)
	if len(res.Unresolved) > 0 {
		return
	}
	conv.Transaction.Items = res.Resolved
	conv.Transaction.TotalAmountCents = conv.Transaction.ItemsTotalCents() + conv.Transaction.DeliveryFeeCents
}

func lastOrderPreview(profile *domain.CustomerProfile) string {
	if profile == nil || profile.LastOrder == nil || len(profile.LastOrder.Items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(profile.LastOrder.Items))
	for _, it := range profile.LastOrder.Items {
		lines = append(lines, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
	}
	return strings.Join(lines, "\n")
}

func (s *TurnService) applyEffects(conv *domain.Conversation, profile *domain.CustomerProfile, d *flow.Decision, now time.Time) {
	if d.ResetFlow {
		conv.ResetFlow(now)
	}
	if d.ConfirmPending && conv.PendingConfirmation != "" {
		conv.Confirmed[conv.PendingConfirmation] = true
		conv.PendingConfirmation = ""
	}
	if d.ClearPendingField && conv.PendingConfirmation != "" {
		order.ClearField(conv, conv.PendingConfirmation)
		conv.PendingConfirmation = ""
	}
	if d.SetPending != "" {
		conv.PendingConfirmation = d.SetPending
	}
	if d.OfferRepeat {
		conv.AwaitingRepeatChoice = true
		conv.RepeatPreview = d.Action.Preview
	}
	if d.AcceptRepeat {
		conv.AwaitingRepeatChoice = false
		conv.RepeatPreview = ""
		if profile.LastOrder != nil {
			snap := profile.LastOrder.Clone()
			conv.Transaction.Items = snap.Items
			conv.Transaction.Notes = snap.Notes
		}
	}
	if d.DeclineRepeat {
		conv.AwaitingRepeatChoice = false
		conv.RepeatPreview = ""
	}
	if d.ApplyCorrection != nil {
		order.ApplyCorrection(&conv.Transaction, d.ApplyCorrection)
	}
	if d.SetPayment != "" {
		conv.Transaction.Payment = d.SetPayment
	}
	if d.CompleteItems {
		conv.ItemsPhaseComplete = true
	}
	if d.MarkUpsell {
		conv.UpsellDone = true
	}
}

// commit runs the order submission and rewrites the decision on failure so
// the customer lands back on the field that needs fixing. Failures count
// toward the consecutive-failure escalation.
func (s *TurnService) commit(ctx context.Context, rt *TenantRuntime, conv *domain.Conversation, profile *domain.CustomerProfile, d *flow.Decision) bool {
	err := rt.Committer.Commit(ctx, conv, profile)
	if err == nil {
		return false
	}

	var unres *order.UnresolvedError
	var verr *order.ValidationError
	var perr *order.ProviderError
	switch {
	case errors.As(err, &unres):
		conv.ItemsPhaseComplete = false
		d.Next = domain.StateAddingItem
		d.Action = domain.Action{Kind: domain.ActionItemNotFound, Names: unres.Names}
	case errors.As(err, &verr):
		if verr.Field == domain.FieldItems {
			conv.ItemsPhaseComplete = false
		}
		d.Next = flow.StateForField(verr.Field)
		d.Action = domain.Action{Kind: domain.ActionValidationFailed, Reason: verr.Reason}
	case errors.As(err, &perr):
		// order intact, provider down; hold at review for a retry
		d.Next = domain.StateFinalizing
		d.Action = domain.Action{Kind: domain.ActionTransientFailure}
	default:
		s.log.Error("commit failed", "tenant", conv.TenantID, "err", err)
		d.Next = domain.StateFinalizing
		d.Action = domain.Action{Kind: domain.ActionTransientFailure}
	}
	return true
}

// rephrasable lists the conversational actions the LLM may rephrase. Money
// and commit confirmations always go out verbatim.
var rephrasable = map[domain.ActionKind]bool{
	domain.ActionGreet:              true,
	domain.ActionClarify:            true,
	domain.ActionAskItems:           true,
	domain.ActionUpsellSuggest:      true,
	domain.ActionAskMode:            true,
	domain.ActionAskAddress:         true,
	domain.ActionAskPayment:         true,
	domain.ActionAskAdjustment:      true,
	domain.ActionPostConfirmSupport: true,
	domain.ActionStillThere:         true,
}

func (s *TurnService) reply(ctx context.Context, rt *TenantRuntime, conv *domain.Conversation, a domain.Action, inbound string, now time.Time) {
	text := Render(a, conv, rt.Config)
	if s.replies != nil && rt.Config.Model != "" && (rephrasable[a.Kind] || a.AnswerQuestion) {
		if phrased, err := s.replies.GenerateReply(ctx, rt.Config.Model, text, inbound); err == nil {
			text = phrased
		} else {
			s.log.Warn("reply rephrase failed, sending template", "tenant", rt.Config.ID, "err", err)
		}
	}
	if err := s.sender.Send(ctx, conv.TenantID, conv.Channel, text); err != nil {
		s.log.Error("send failed", "tenant", conv.TenantID, "channel", conv.Channel, "err", err)
		return
	}
	conv.AppendMessage("out", text, now)
}

// FollowUp nudges a customer who went quiet with an open cart.
func (s *TurnService) FollowUp(ctx context.Context, tenantID, channel string) {
	rt, ok := s.tenants[tenantID]
	if !ok {
		return
	}
	conv, err := s.store.LoadConversation(ctx, tenantID, channel)
	if err != nil || conv == nil || !conv.State.CartOpen() {
		return
	}
	s.reply(ctx, rt, conv, domain.Action{Kind: domain.ActionStillThere}, "", s.now())
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		s.log.Warn("save after follow-up failed", "tenant", tenantID, "err", err)
	}
}

// AutoCancel abandons a cart nobody came back for.
func (s *TurnService) AutoCancel(ctx context.Context, tenantID, channel string) {
	rt, ok := s.tenants[tenantID]
	if !ok {
		return
	}
	conv, err := s.store.LoadConversation(ctx, tenantID, channel)
	if err != nil || conv == nil || !conv.State.CartOpen() {
		return
	}
	now := s.now()
	conv.ResetFlow(now)
	s.log.Info("auto-cancelled abandoned cart", "tenant", tenantID, "channel", channel)
	s.reply(ctx, rt, conv, domain.Action{Kind: domain.ActionAutoCancelled}, "", now)
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		s.log.Warn("save after auto-cancel failed", "tenant", tenantID, "err", err)
	}
}
