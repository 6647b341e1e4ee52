// Package model contains portfolio documents.
package model

import (
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/Laisky/agency-site/library/apperr"
)

// CollProjects projects collection
const CollProjects = "projects"

// ErrSlugTaken another project uses the slug
var ErrSlugTaken = errors.Wrap(apperr.ErrValidation, "project slug already in use")

// Project is one case study of the portfolio, listed by ascending Order
type Project struct {
	ID        string    `firestore:"id" bson:"id" json:"id"`
	Slug      string    `firestore:"slug" bson:"slug" json:"slug"`
	Title     string    `firestore:"title" bson:"title" json:"title"`
	TitleAr   string    `firestore:"title_ar" bson:"title_ar" json:"title_ar"`
	Summary   string    `firestore:"summary" bson:"summary" json:"summary"`
	SummaryAr string    `firestore:"summary_ar" bson:"summary_ar" json:"summary_ar"`
	Client    string    `firestore:"client" bson:"client" json:"client"`
	Services  []string  `firestore:"services" bson:"services" json:"services"`
	Tags      []string  `firestore:"tags" bson:"tags" json:"tags"`
	URL       string    `firestore:"url" bson:"url" json:"url"`
	CoverURL  string    `firestore:"cover_url" bson:"cover_url" json:"cover_url"`
	Featured  bool      `firestore:"featured" bson:"featured" json:"featured"`
	Published bool      `firestore:"published" bson:"published" json:"published"`
	Order     int64     `firestore:"order" bson:"order" json:"order"`
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at" bson:"updated_at" json:"updated_at"`
}
