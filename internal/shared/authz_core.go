package shared

import (
	"context"
	"fmt"
)

// Action enumerates every guarded operation of the asset and budget core.
type Action int

const (
	ActionManageBudget Action = iota + 1
	ActionViewBudget
	ActionViewBudgetReport
	ActionCreateRequest
	ActionViewProcurement
	ActionApproveRequest
	ActionManageOrder
	ActionReceiveOrder
	ActionForceOverspend
	ActionRevalue
	ActionDepreciate
	ActionDispose
	ActionViewValuation
	ActionViewAssets
)

var actionCodes = map[Action]string{
	ActionManageBudget:     "budget.manage",
	ActionViewBudget:       "budget.view",
	ActionViewBudgetReport: "budget.report",
	ActionCreateRequest:    "procurement.request.create",
	ActionViewProcurement:  "procurement.view",
	ActionApproveRequest:   "procurement.request.approve",
	ActionManageOrder:      "procurement.order.manage",
	ActionReceiveOrder:     "procurement.order.receive",
	ActionForceOverspend:   "budget.overspend.force",
	ActionRevalue:          "assets.revalue",
	ActionDepreciate:       "assets.depreciate",
	ActionDispose:          "assets.dispose",
	ActionViewValuation:    "assets.valuation.view",
	ActionViewAssets:       "assets.view",
}

var actionDescriptions = map[Action]string{
	ActionManageBudget:     "Manage budget periods and lines",
	ActionViewBudget:       "View budget periods and lines",
	ActionViewBudgetReport: "View budget execution report",
	ActionCreateRequest:    "Create purchase requests",
	ActionViewProcurement:  "View purchase requests and orders",
	ActionApproveRequest:   "Approve or reject purchase requests",
	ActionManageOrder:      "Create, send and cancel purchase orders",
	ActionReceiveOrder:     "Receive purchase orders into assets",
	ActionForceOverspend:   "Post spends beyond available budget",
	ActionRevalue:          "Revalue assets",
	ActionDepreciate:       "Depreciate assets",
	ActionDispose:          "Dispose assets",
	ActionViewValuation:    "View asset valuation history",
	ActionViewAssets:       "View assets",
}

// String returns the permission code stored in the permissions table.
func (a Action) String() string {
	if code, ok := actionCodes[a]; ok {
		return code
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Description returns a human readable label for seeding.
func (a Action) Description() string {
	return actionDescriptions[a]
}

// AllActions lists every action in declaration order.
func AllActions() []Action {
	out := make([]Action, 0, len(actionCodes))
	for a := ActionManageBudget; a <= ActionViewAssets; a++ {
		out = append(out, a)
	}
	return out
}

// Authorizer evaluates whether an actor may perform an action in its tenant.
type Authorizer interface {
	HasPermission(ctx context.Context, actor Actor, action Action) (bool, error)
}

// Authorize returns ErrPermissionDenied unless the authorizer grants action.
func Authorize(ctx context.Context, authz Authorizer, actor Actor, action Action) error {
	if authz == nil {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, action)
	}
	ok, err := authz.HasPermission(ctx, actor, action)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", action, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, action)
	}
	return nil
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, actor Actor, action Action) (bool, error)

// HasPermission implements Authorizer.
func (f AuthorizerFunc) HasPermission(ctx context.Context, actor Actor, action Action) (bool, error) {
	return f(ctx, actor, action)
}
