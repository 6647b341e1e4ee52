// Package model contains the dashboard feed documents.
package model

import "time"

const (
	// CollNotifications notifications collection
	CollNotifications = "notifications"
	// CollActivities activities collection
	CollActivities = "activities"
)

// Notification something an admin should look at
type Notification struct {
	ID        string    `firestore:"id" bson:"id" json:"id"`
	Kind      string    `firestore:"kind" bson:"kind" json:"kind"`
	Title     string    `firestore:"title" bson:"title" json:"title"`
	Body      string    `firestore:"body" bson:"body" json:"body"`
	Link      string    `firestore:"link" bson:"link" json:"link,omitempty"`
	Read      bool      `firestore:"read" bson:"read" json:"read"`
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
}

// Activity one audit log entry
type Activity struct {
	ID        string    `firestore:"id" bson:"id" json:"id"`
	ActorID   string    `firestore:"actor_id" bson:"actor_id" json:"actor_id"`
	ActorName string    `firestore:"actor_name" bson:"actor_name" json:"actor_name"`
	Action    string    `firestore:"action" bson:"action" json:"action"`
	Target    string    `firestore:"target" bson:"target" json:"target"`
	TargetID  string    `firestore:"target_id" bson:"target_id" json:"target_id"`
	CreatedAt time.Time `firestore:"created_at" bson:"created_at" json:"created_at"`
}

// Stats counters shown on the dashboard home
type Stats struct {
	Posts               map[string]int `json:"posts"`
	PendingComments     int            `json:"pending_comments"`
	NewLeads            int            `json:"new_leads"`
	Projects            int            `json:"projects"`
	Users               int            `json:"users"`
	UnreadNotifications int            `json:"unread_notifications"`
}
