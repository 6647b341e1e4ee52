// Package model contains lead documents.
package model

import (
	"time"

	"github.com/Laisky/agency-site/library/i18n"
)

// CollLeads leads collection
const CollLeads = "leads"

// Kind of form the lead came from
type Kind string

const (
	KindContact Kind = "contact"
	KindQuote   Kind = "quote"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindContact || k == KindQuote
}

// Status in the sales pipeline
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusSpam      Status = "spam"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusWon, StatusLost, StatusSpam:
		return true
	default:
		return false
	}
}

// Budgets accepted on the quote form
var Budgets = []string{"under_1k", "1k_5k", "5k_15k", "15k_50k", "over_50k", "not_sure"}

// Timelines accepted on the quote form
var Timelines = []string{"asap", "1_month", "1_3_months", "3_plus_months", "flexible"}

// Lead contact or quote request
type Lead struct {
	ID        string    `firestore:"id" bson:"id" json:"id"`
	Kind      Kind      `firestore:"kind" bson:"kind" json:"kind"`
	Status    Status    `firestore:"status" bson:"status" json:"status"`
	Name      string    `firestore:"name" bson:"name" json:"name"`
	Email     string    `firestore:"email" bson:"email" json:"email"`
	Phone     string    `firestore:"phone" bson:"phone" json:"phone,omitempty"`
	Company   string    `firestore:"company" bson:"company" json:"company,omitempty"`
	Message   string    `firestore:"message" bson:"message" json:"message"`
	Services  []string  `firestore:"services" bson:"services" json:"services"`
	Budget    string    `firestore:"budget" bson:"budget" json:"budget,omitempty"`
	Timeline  string    `firestore:"timeline" bson:"timeline" json:"timeline,omitempty"`
	Language  i18n.Lang `firestore:"language" bson:"language" json:"language"`
	IP        string    `firestore:"ip" bson:"ip" json:"ip,omitempty"`
	UserAgent string    `firestore:"user_agent" bson:"user_agent" json:"user_agent,omitempty"`
	Note      string    `firestore:"note" bson:"note" json:"note,omitempty"`
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at" bson:"updated_at" json:"updated_at"`
}
