// Package referral implements the binary referral graph and the level-reward
// engine that pays sponsors for active left/right referral counts.
package referral

import (
	"referral_system/internal/apperr"
	"referral_system/internal/domain"
	"referral_system/internal/lock"
	"referral_system/internal/store"

	"github.com/sirupsen/logrus"
)

// Graph places and activates referral edges.
type Graph struct {
	edges store.EdgeStore
	locks *lock.KeyedMutex // Per-sponsor insertion lock
}

// NewGraph builds a Graph over the edge store.
func NewGraph(edges store.EdgeStore) *Graph {
	return &Graph{edges: edges, locks: lock.NewKeyedMutex()}
}

// Place creates the edge from sponsor to the new user. The side strictly
// alternates left, right, left, ... by the count of all existing edges under
// the sponsor, active or not. The count-then-insert runs under a per-sponsor
// lock so concurrent referrals to a popular sponsor cannot land on the same
// side. The edge starts inactive; Activate flips it once the referred user's
// registration deposit is verified.
func (g *Graph) Place(sponsorID, newUserID uint) (*domain.ReferralEdge, error) {
	if sponsorID == newUserID {
		return nil, apperr.Validation("user cannot refer themselves")
	}
	g.locks.Lock(sponsorID)
	defer g.locks.Unlock(sponsorID)

	if _, err := g.edges.ByReferred(newUserID); err == nil {
		return nil, apperr.Conflict("user already has a sponsor")
	}
	count, err := g.edges.CountByReferrer(sponsorID)
	if err != nil {
		return nil, err
	}
	side := domain.SideLeft
	if count%2 == 1 {
		side = domain.SideRight // Odd count: the next slot is right
	}
	edge := &domain.ReferralEdge{
		ReferrerID:     sponsorID,
		ReferredID:     newUserID,
		Side:           side,
		IsActive:       false,
		CommissionRate: domain.DefaultCommissionRate,
	}
	if err := g.edges.Create(edge); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"sponsor_id":  sponsorID,
		"referred_id": newUserID,
		"side":        side,
	}).Info("Referral placed")
	return edge, nil
}

// Activate flips the referred user's inbound edge active. Activating an
// already-active edge is a no-op. Users without a sponsor have no edge;
// callers decide whether that is an error.
func (g *Graph) Activate(referredID uint) (*domain.ReferralEdge, error) {
	edge, err := g.edges.ByReferred(referredID)
	if err != nil {
		return nil, err
	}
	if edge.IsActive {
		return edge, nil
	}
	edge.IsActive = true
	if err := g.edges.Save(edge); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"sponsor_id":  edge.ReferrerID,
		"referred_id": referredID,
		"side":        edge.Side,
	}).Info("Referral edge activated")
	return edge, nil
}

// Deactivate marks the referred user's inbound edge inactive, used when a
// registration deposit is rejected after the edge was already flipped.
func (g *Graph) Deactivate(referredID uint) error {
	edge, err := g.edges.ByReferred(referredID)
	if err != nil {
		return err
	}
	if !edge.IsActive {
		return nil
	}
	edge.IsActive = false
	return g.edges.Save(edge)
}
