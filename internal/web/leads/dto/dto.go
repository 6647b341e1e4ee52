// Package dto request and response shapes of the leads API
package dto

import (
	"github.com/Laisky/agency-site/internal/web/leads/model"
	"github.com/Laisky/agency-site/library/i18n"
)

// LeadInput contact or quote form. Services, Budget and Timeline are quote only.
type LeadInput struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Company        string   `json:"company"`
	Message        string   `json:"message"`
	Services       []string `json:"services"`
	Budget         string   `json:"budget"`
	Timeline       string   `json:"timeline"`
	Language       string   `json:"language"`
	TurnstileToken string   `json:"turnstile_token"`
}

// Client describes who submitted the form
type Client struct {
	IP        string
	UserAgent string
	// Lang negotiated from the request, used when the form has no language
	Lang i18n.Lang
}

// LeadCfg dashboard lead listing, empty filters match everything
type LeadCfg struct {
	Status     model.Status
	Kind       model.Kind
	Page, Size int
}

// LeadList one page of leads
type LeadList struct {
	Items []*model.Lead `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

// StatusInput move a lead in the pipeline
type StatusInput struct {
	Status model.Status `json:"status"`
	Note   string       `json:"note"`
}

// Receipt returned to the visitor
type Receipt struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
