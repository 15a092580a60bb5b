package lab

import (
	"fmt"
	"time"

	"github.com/vetlabhq/vetnotify/pkg/notify"
)

// Record reference kinds used in notification contexts.
const (
	RefKindSample    = "sample"
	RefKindReport    = "report"
	RefKindWorkOrder = "work_order"
)

// SampleStatus tracks a sample through reception.
type SampleStatus string

const (
	SampleStatusReceived SampleStatus = "received"
	SampleStatusRejected SampleStatus = "rejected"
	SampleStatusReported SampleStatus = "reported"
)

// Veterinarian is the submitting clinician and the notification recipient.
type Veterinarian struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Clinic string `json:"clinic"`
}

// Recipient converts the veterinarian into a notification recipient.
func (v Veterinarian) Recipient() notify.Recipient {
	return notify.Recipient{Ref: v.ID, Address: v.Email}
}

// Sample is one received diagnostic specimen.
type Sample struct {
	ID             string       `json:"id"`
	Protocol       string       `json:"protocol"`
	Kind           string       `json:"kind"` // cytology or histopathology
	PatientName    string       `json:"patient_name"`
	Species        string       `json:"species"`
	Breed          string       `json:"breed,omitempty"`
	OwnerName      string       `json:"owner_name,omitempty"`
	Material       string       `json:"material,omitempty"`
	VeterinarianID string       `json:"veterinarian_id"`
	Status         SampleStatus `json:"status"`
	RejectReason   string       `json:"reject_reason,omitempty"`
	ReceivedAt     time.Time    `json:"received_at"`
}

func (s *Sample) String() string {
	return fmt.Sprintf("Sample %s (%s, %s)", s.Protocol, s.Kind, s.PatientName)
}

// Ref builds the transport-safe reference for notification contexts.
func (s *Sample) Ref() notify.Ref {
	return notify.Ref{ID: s.ID, Kind: RefKindSample, Display: s.String()}
}

// Report is one finalized diagnostic report.
type Report struct {
	ID          string    `json:"id"`
	SampleID    string    `json:"sample_id"`
	Protocol    string    `json:"protocol"`
	Findings    []Finding `json:"findings,omitempty"`
	Diagnosis   string    `json:"diagnosis"`
	Comments    string    `json:"comments,omitempty"`
	Pathologist string    `json:"pathologist"`
	FinalizedAt time.Time `json:"finalized_at"`
}

// Finding is one titled block of report text.
type Finding struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (r *Report) String() string {
	return fmt.Sprintf("Report %s (%s)", r.Protocol, r.Diagnosis)
}

// Ref builds the transport-safe reference for notification contexts.
func (r *Report) Ref() notify.Ref {
	return notify.Ref{ID: r.ID, Kind: RefKindReport, Display: r.String()}
}

// WorkOrder is one billing document issued for completed diagnostics.
type WorkOrder struct {
	ID             string          `json:"id"`
	Number         string          `json:"number"`
	VeterinarianID string          `json:"veterinarian_id"`
	Items          []WorkOrderItem `json:"items"`
	Total          float64         `json:"total"`
	IssuedAt       time.Time       `json:"issued_at"`
}

// WorkOrderItem is one billed line.
type WorkOrderItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

func (w *WorkOrder) String() string {
	return fmt.Sprintf("Work order %s", w.Number)
}

// Ref builds the transport-safe reference for notification contexts.
func (w *WorkOrder) Ref() notify.Ref {
	return notify.Ref{ID: w.ID, Kind: RefKindWorkOrder, Display: w.String()}
}
