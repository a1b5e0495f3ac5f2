package repository

import (
	"github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
)

// Repository defines the interface for forwarding rule persistence.
// GetAllRules returns rules ordered by name.
type Repository interface {
	SaveRule(rule domain.ForwardingRule) error
	GetRule(name string) (domain.ForwardingRule, error)
	GetAllRules() ([]domain.ForwardingRule, error)
	DeleteRule(name string) error
}
