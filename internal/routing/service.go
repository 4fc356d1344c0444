package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/credit"
	"github.com/tradelinehq/tradeline/internal/orders"
	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/logger"
	"github.com/tradelinehq/tradeline/pkg/outbox"
)

const sweepBatchSize = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type creditManager interface {
	ReserveInTx(ctx context.Context, tx *gorm.DB, input credit.ReserveInput) (*models.CreditReservation, error)
	ReleaseInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

type stockManager interface {
	ReserveItemsInTx(ctx context.Context, tx *gorm.DB, orderID, sellerID uuid.UUID, items []models.OrderItem) ([]models.StockReservation, error)
	ReleaseInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

type notifier interface {
	EnqueueInTx(ctx context.Context, tx *gorm.DB, recipient uuid.UUID, template enums.NotificationTemplate, data any) error
}

// RespondInput is one seller's answer to a routed order.
type RespondInput struct {
	RoutingID uuid.UUID
	VendorID  uuid.UUID
	Decision  enums.VendorDecision
}

// BroadcastEvent is emitted when a routing tier goes out to sellers.
type BroadcastEvent struct {
	RoutingID uuid.UUID   `json:"routing_id"`
	OrderID   uuid.UUID   `json:"order_id"`
	Tier      int         `json:"tier"`
	VendorIDs []uuid.UUID `json:"vendor_ids"`
}

// AcceptedEvent is emitted once, by the winning acceptance.
type AcceptedEvent struct {
	RoutingID uuid.UUID `json:"routing_id"`
	OrderID   uuid.UUID `json:"order_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
}

// ExpiredEvent is emitted when a tier expires, whether or not another tier
// remains to broadcast to.
type ExpiredEvent struct {
	RoutingID uuid.UUID `json:"routing_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Tier      int       `json:"tier"`
	Exhausted bool      `json:"exhausted"`
}

// Service coordinates vendor routing: ranked broadcast, response intake, the
// acceptance race, and the expiry sweep.
type Service interface {
	RouteOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.VendorRouting, error)
	Respond(ctx context.Context, input RespondInput) (*models.VendorResponse, error)
	Accept(ctx context.Context, routingID, vendorID uuid.UUID) (*models.Order, error)
	ExpireAndRebroadcast(ctx context.Context, now time.Time) (int, error)
}

type service struct {
	repo     Repository
	orders   orders.Repository
	machine  *orders.StateMachine
	tx       txRunner
	credit   creditManager
	stock    stockManager
	outbox   outboxPublisher
	notifier notifier
	policy   Policy
	cfg      config.RoutingConfig
	logg     *logger.Logger
}

// NewService builds the routing coordinator with the required dependencies.
func NewService(repo Repository, ordersRepo orders.Repository, machine *orders.StateMachine, tx txRunner, creditMgr creditManager, stockMgr stockManager, publisher outboxPublisher, notifier notifier, policy Policy, cfg config.RoutingConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("routing repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if machine == nil {
		return nil, fmt.Errorf("state machine required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if creditMgr == nil {
		return nil, fmt.Errorf("credit manager required")
	}
	if stockMgr == nil {
		return nil, fmt.Errorf("stock manager required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if policy == nil {
		return nil, fmt.Errorf("ranking policy required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		orders:   ordersRepo,
		machine:  machine,
		tx:       tx,
		credit:   creditMgr,
		stock:    stockMgr,
		outbox:   publisher,
		notifier: notifier,
		policy:   policy,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

// RouteOrderInTx ranks eligible sellers and opens the routing at tier zero,
// broadcasting to the top tier inside the caller's transaction.
func (s *service) RouteOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.VendorRouting, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	repo := s.repo.WithTx(tx)

	ranked, err := s.rankedCandidates(ctx, repo, order)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no eligible vendors for order")
	}

	routing := &models.VendorRouting{
		OrderID:   order.ID,
		Tier:      0,
		ExpiresAt: time.Now().Add(s.cfg.ResponseTTL),
	}
	if err := repo.CreateRouting(ctx, routing); err != nil {
		if db.IsUniqueViolation(err, "ux_vendor_routings_order") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a routing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create routing")
	}

	tier := tierSlice(ranked, 0, s.tierSize())
	if err := s.broadcastTier(ctx, tx, routing, order, tier); err != nil {
		return nil, err
	}
	return routing, nil
}

// Respond records a seller's decision. The response row commits on its own
// before an accept decision enters the acceptance race, so a losing accept
// stays on record (and keeps the loser reachable for not-available notices)
// even though the caller hears ALREADY_TAKEN.
func (s *service) Respond(ctx context.Context, input RespondInput) (*models.VendorResponse, error) {
	if input.RoutingID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "routing id and vendor id required")
	}
	if input.Decision != enums.VendorDecisionAccept && input.Decision != enums.VendorDecisionReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid vendor decision %q", input.Decision))
	}

	response := &models.VendorResponse{
		RoutingID: input.RoutingID,
		VendorID:  input.VendorID,
		Decision:  input.Decision,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		routing, err := repo.RoutingByID(ctx, input.RoutingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "routing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load routing")
		}

		if err := repo.CreateResponse(ctx, response); err != nil {
			if db.IsUniqueViolation(err, "ux_vendor_responses_routing_vendor") {
				return pkgerrors.New(pkgerrors.CodeConflict, "vendor already responded to this routing")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record vendor response")
		}

		if input.Decision == enums.VendorDecisionReject {
			return s.rejectInTx(ctx, tx, routing, input.VendorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if input.Decision == enums.VendorDecisionAccept {
		if _, err := s.Accept(ctx, input.RoutingID, input.VendorID); err != nil {
			return nil, err
		}
	}
	return response, nil
}

// rejectInTx moves a designated order to VENDOR_REJECTED when its one vendor
// declines. Open-order rejections just accumulate; the expiry sweep escalates.
func (s *service) rejectInTx(ctx context.Context, tx *gorm.DB, routing *models.VendorRouting, vendorID uuid.UUID) error {
	order, err := s.orders.WithTx(tx).FindByID(ctx, routing.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.SellerID == nil || *order.SellerID != vendorID {
		return nil
	}
	_, err = s.machine.TransitionInTx(ctx, tx, order.ID, enums.OrderStatusVendorRejected, orders.TransitionContext{
		PerformedBy: vendorID.String(),
		Reason:      "vendor rejected",
	})
	return err
}

// Accept runs the acceptance race in its own transaction. Repeat calls by the
// winner succeed without re-running the downstream effects; any other vendor
// after the winning write gets ALREADY_TAKEN.
func (s *service) Accept(ctx context.Context, routingID, vendorID uuid.UUID) (*models.Order, error) {
	if routingID == uuid.Nil || vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "routing id and vendor id required")
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		accepted, err := s.acceptInTx(ctx, tx, routingID, vendorID)
		if err != nil {
			return err
		}
		order = accepted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) acceptInTx(ctx context.Context, tx *gorm.DB, routingID, vendorID uuid.UUID) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	ordersRepo := s.orders.WithTx(tx)

	routing, err := repo.RoutingByID(ctx, routingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "routing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load routing")
	}

	order, err := ordersRepo.FindByID(ctx, routing.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	won, err := repo.AcceptRouting(ctx, routingID, vendorID, time.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept routing")
	}
	if won == 0 {
		current, err := repo.RoutingByID(ctx, routingID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload routing")
		}
		if current.AcceptedVendorID != nil && *current.AcceptedVendorID == vendorID {
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyTaken, "order already taken by another vendor")
	}

	// Eligibility is judged only after the CAS so race losers resolve through
	// the won==0 path above. A designated order's seller is fixed at creation;
	// an ineligible winning write rolls back with the transaction.
	if order.SellerID != nil && *order.SellerID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor not eligible for this order")
	}

	open := order.SellerID == nil
	if open {
		if err := ordersRepo.AssignSeller(ctx, order.ID, vendorID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign seller")
		}
	}

	if _, err := s.machine.TransitionInTx(ctx, tx, order.ID, enums.OrderStatusVendorAccepted, orders.TransitionContext{
		PerformedBy: vendorID.String(),
		Reason:      "vendor accepted",
	}); err != nil {
		return nil, err
	}

	// Open orders could not reserve before a winner existed; place the holds
	// now, inside the acceptance transaction.
	if open {
		if order.PaymentMode == enums.PaymentModeCredit {
			if _, err := s.machine.TransitionInTx(ctx, tx, order.ID, enums.OrderStatusCreditReserved, orders.TransitionContext{
				PerformedBy: "system",
				Reason:      "credit hold placed",
				Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
					_, err := s.credit.ReserveInTx(ctx, tx, credit.ReserveInput{
						OrderID:     o.ID,
						BuyerID:     o.BuyerID,
						SellerID:    vendorID,
						AmountCents: o.TotalCents,
					})
					return err
				},
			}); err != nil {
				return nil, err
			}
		}
		if _, err := s.machine.TransitionInTx(ctx, tx, order.ID, enums.OrderStatusStockReserved, orders.TransitionContext{
			PerformedBy: "system",
			Reason:      "stock hold placed",
			Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
				_, err := s.stock.ReserveItemsInTx(ctx, tx, o.ID, vendorID, o.Items)
				return err
			},
		}); err != nil {
			return nil, err
		}
	}

	if err := s.notifier.EnqueueInTx(ctx, tx, vendorID, enums.NotificationSellerOrderWon, map[string]any{
		"order_id":   order.ID,
		"routing_id": routing.ID,
	}); err != nil {
		return nil, err
	}
	responses, err := repo.ResponsesByRouting(ctx, routing.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list responses")
	}
	for _, response := range responses {
		if response.VendorID == vendorID {
			continue
		}
		if err := s.notifier.EnqueueInTx(ctx, tx, response.VendorID, enums.NotificationSellerOrderTaken, map[string]any{
			"order_id":   order.ID,
			"routing_id": routing.ID,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRoutingAccepted,
		AggregateType: enums.AggregateVendorRouting,
		AggregateID:   routing.ID,
		Version:       1,
		Data:          AcceptedEvent{RoutingID: routing.ID, OrderID: order.ID, VendorID: vendorID},
	}); err != nil {
		return nil, err
	}

	return ordersRepo.FindByID(ctx, order.ID)
}

// ExpireAndRebroadcast sweeps routings past their deadline: silent vendors get
// an EXPIRED response, the next tier is broadcast, or the order fails when no
// tier remains. Returns how many routings were swept; per-routing failures are
// collected, not fatal to the sweep.
func (s *service) ExpireAndRebroadcast(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ExpiredOpen(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired routings")
	}

	var swept int
	var errs error
	for _, routing := range expired {
		routing := routing
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.expireOneInTx(ctx, tx, routing.ID, now)
		})
		if err != nil {
			s.logg.Error(ctx, "routing expiry sweep failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		swept++
	}
	return swept, errs
}

func (s *service) expireOneInTx(ctx context.Context, tx *gorm.DB, routingID uuid.UUID, now time.Time) error {
	repo := s.repo.WithTx(tx)
	ordersRepo := s.orders.WithTx(tx)

	routing, err := repo.RoutingByID(ctx, routingID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load routing")
	}
	// Raced with an acceptance or an earlier sweep.
	if routing.AcceptedVendorID != nil || routing.ExpiresAt.After(now) {
		return nil
	}

	order, err := ordersRepo.FindByID(ctx, routing.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	ranked, err := s.rankedCandidates(ctx, repo, order)
	if err != nil {
		return err
	}

	responses, err := repo.ResponsesByRouting(ctx, routing.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list responses")
	}
	responded := make(map[uuid.UUID]bool, len(responses))
	for _, response := range responses {
		responded[response.VendorID] = true
	}
	for _, candidate := range notifiedSoFar(ranked, routing.Tier, s.tierSize()) {
		if responded[candidate.SellerID] {
			continue
		}
		if err := repo.CreateResponse(ctx, &models.VendorResponse{
			RoutingID: routing.ID,
			VendorID:  candidate.SellerID,
			Decision:  enums.VendorDecisionExpired,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark silent vendor expired")
		}
	}

	nextTier := tierSlice(ranked, routing.Tier+1, s.tierSize())
	exhausted := routing.Tier+1 >= s.maxTiers() || len(nextTier) == 0

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRoutingExpired,
		AggregateType: enums.AggregateVendorRouting,
		AggregateID:   routing.ID,
		Version:       1,
		Data:          ExpiredEvent{RoutingID: routing.ID, OrderID: order.ID, Tier: routing.Tier, Exhausted: exhausted},
	}); err != nil {
		return err
	}

	if exhausted {
		return s.failOrderInTx(ctx, tx, order)
	}

	if err := repo.AdvanceTier(ctx, routing.ID, routing.Tier+1, now.Add(s.cfg.ResponseTTL)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance routing tier")
	}
	routing.Tier++

	// A designated order sits in VENDOR_REJECTED after its vendor declined;
	// rebroadcast returns it to VENDOR_NOTIFIED.
	if order.Status == enums.OrderStatusVendorRejected {
		if _, err := s.machine.TransitionInTx(ctx, tx, order.ID, enums.OrderStatusVendorNotified, orders.TransitionContext{
			PerformedBy: "system",
			Reason:      "rebroadcast",
		}); err != nil {
			return err
		}
	}

	return s.broadcastTier(ctx, tx, routing, order, nextTier)
}

// failOrderInTx fails an order whose routing exhausted every tier, releasing
// any holds it still has.
func (s *service) failOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	_, err := s.machine.TransitionInTx(ctx, tx, order.ID, enums.OrderStatusFailed, orders.TransitionContext{
		PerformedBy: "system",
		Reason:      "no vendor accepted",
		Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
			if err := s.credit.ReleaseInTx(ctx, tx, o.ID, "no vendor accepted"); err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return err
			}
			if err := s.stock.ReleaseInTx(ctx, tx, o.ID, "no vendor accepted"); err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return err
			}
			return s.notifier.EnqueueInTx(ctx, tx, o.BuyerID, enums.NotificationBuyerOrderFailed, map[string]any{
				"order_id": o.ID,
				"reason":   "no vendor accepted",
			})
		},
	})
	return err
}

func (s *service) broadcastTier(ctx context.Context, tx *gorm.DB, routing *models.VendorRouting, order *models.Order, tier []Candidate) error {
	vendorIDs := make([]uuid.UUID, 0, len(tier))
	for _, candidate := range tier {
		vendorIDs = append(vendorIDs, candidate.SellerID)
		if err := s.notifier.EnqueueInTx(ctx, tx, candidate.SellerID, enums.NotificationSellerOrderBroadcast, map[string]any{
			"order_id":    order.ID,
			"routing_id":  routing.ID,
			"total_cents": order.TotalCents,
			"expires_at":  routing.ExpiresAt,
		}); err != nil {
			return err
		}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRoutingBroadcast,
		AggregateType: enums.AggregateVendorRouting,
		AggregateID:   routing.ID,
		Version:       1,
		Data:          BroadcastEvent{RoutingID: routing.ID, OrderID: order.ID, Tier: routing.Tier, VendorIDs: vendorIDs},
	})
}

// rankedCandidates builds the scored seller list for an order. A designated
// order has exactly one candidate; open orders rank every active seller.
func (s *service) rankedCandidates(ctx context.Context, repo Repository, order *models.Order) ([]Candidate, error) {
	if order.SellerID != nil {
		return []Candidate{{SellerID: *order.SellerID}}, nil
	}

	profiles, err := repo.ActiveSellerProfiles(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller profiles")
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	sellerIDs := make([]uuid.UUID, 0, len(profiles))
	for _, profile := range profiles {
		sellerIDs = append(sellerIDs, profile.SellerID)
	}
	productIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	stockRows, err := repo.StockLevels(ctx, sellerIDs, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock levels")
	}
	stockBySeller := make(map[uuid.UUID]map[uuid.UUID]int)
	for _, row := range stockRows {
		if stockBySeller[row.SellerID] == nil {
			stockBySeller[row.SellerID] = make(map[uuid.UUID]int)
		}
		stockBySeller[row.SellerID][row.ProductID] = row.PhysicalQty
	}

	buyerRegion, err := repo.BuyerRegion(ctx, order.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer region")
	}

	candidates := make([]Candidate, 0, len(profiles))
	for _, profile := range profiles {
		candidates = append(candidates, Candidate{
			SellerID:    profile.SellerID,
			Region:      profile.Region,
			Reliability: profile.Reliability,
			Coverage:    coverageFor(order.Items, stockBySeller[profile.SellerID]),
		})
	}
	return s.policy.Rank(order, buyerRegion, candidates), nil
}

func (s *service) tierSize() int {
	if s.cfg.TierSize > 0 {
		return s.cfg.TierSize
	}
	return 5
}

func (s *service) maxTiers() int {
	if s.cfg.MaxTiers > 0 {
		return s.cfg.MaxTiers
	}
	return 3
}

func tierSlice(ranked []Candidate, tier, size int) []Candidate {
	start := tier * size
	if start >= len(ranked) {
		return nil
	}
	end := start + size
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end]
}

func notifiedSoFar(ranked []Candidate, tier, size int) []Candidate {
	end := (tier + 1) * size
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[:end]
}
