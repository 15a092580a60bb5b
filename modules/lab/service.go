package lab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vetlabhq/vetnotify/pkg/labpdf"
	"github.com/vetlabhq/vetnotify/pkg/logger"
	"github.com/vetlabhq/vetnotify/pkg/notify"
)

var (
	ErrStoreNil    = errors.New("store is nil")
	ErrNotifierNil = errors.New("notifier is nil")
)

// Service turns lab workflow events into notifications: sample reception and
// rejection, report finalization, and work order issuing. Reports and work
// orders get a PDF generated and attached.
type Service struct {
	store    *Store
	notifier *notify.Notifier
	pdf      *labpdf.Generator
	log      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the Service.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates the lab workflow service. The PDF generator is optional;
// without it reports and work orders are announced without attachments.
func NewService(store *Store, notifier *notify.Notifier, pdf *labpdf.Generator, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if notifier == nil {
		return nil, ErrNotifierNil
	}

	s := &Service{
		store:    store,
		notifier: notifier,
		pdf:      pdf,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store returns the underlying record store.
func (s *Service) Store() *Store {
	return s.store
}

// ReceiveSample records a newly arrived sample and notifies the submitting
// veterinarian.
func (s *Service) ReceiveSample(ctx context.Context, sample Sample) (notify.Result, error) {
	vet, err := s.store.GetVeterinarian(sample.VeterinarianID)
	if err != nil {
		return notify.Result{}, err
	}

	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	if sample.ReceivedAt.IsZero() {
		sample.ReceivedAt = time.Now()
	}
	sample.Status = SampleStatusReceived
	s.store.PutSample(sample)

	stored, err := s.store.GetSample(sample.ID)
	if err != nil {
		return notify.Result{}, err
	}

	return s.notifier.SampleReceived(ctx, vet.Recipient(),
		fmt.Sprintf("Sample %s received", sample.Protocol),
		notify.Context{
			"sample":      notify.RecordRef(stored.ID, RefKindSample, stored.String()),
			"patient":     notify.String(sample.PatientName),
			"received_at": notify.Time(sample.ReceivedAt),
		},
	)
}

// RejectSample marks a received sample as unprocessable and notifies the
// submitting veterinarian with the reason.
func (s *Service) RejectSample(ctx context.Context, sampleID, reason string) (notify.Result, error) {
	sample, err := s.store.GetSample(sampleID)
	if err != nil {
		return notify.Result{}, err
	}
	vet, err := s.store.GetVeterinarian(sample.VeterinarianID)
	if err != nil {
		return notify.Result{}, err
	}

	sample.Status = SampleStatusRejected
	sample.RejectReason = reason
	s.store.PutSample(*sample)

	return s.notifier.SampleRejected(ctx, vet.Recipient(),
		fmt.Sprintf("Sample %s rejected", sample.Protocol),
		notify.Context{
			"sample":  notify.RecordRef(sample.ID, RefKindSample, sample.String()),
			"patient": notify.String(sample.PatientName),
			"reason":  notify.String(reason),
		},
	)
}

// FinalizeReport stores a finalized report, renders its PDF, and notifies the
// submitting veterinarian with the document attached.
func (s *Service) FinalizeReport(ctx context.Context, report Report) (notify.Result, error) {
	sample, err := s.store.GetSample(report.SampleID)
	if err != nil {
		return notify.Result{}, err
	}
	vet, err := s.store.GetVeterinarian(sample.VeterinarianID)
	if err != nil {
		return notify.Result{}, err
	}

	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Protocol == "" {
		report.Protocol = sample.Protocol
	}
	if report.FinalizedAt.IsZero() {
		report.FinalizedAt = time.Now()
	}
	s.store.PutReport(report)

	sample.Status = SampleStatusReported
	s.store.PutSample(*sample)

	attachmentPath := s.renderReportPDF(ctx, report, sample, vet)

	stored, err := s.store.GetReport(report.ID)
	if err != nil {
		return notify.Result{}, err
	}

	return s.notifier.ReportReady(ctx, vet.Recipient(),
		fmt.Sprintf("Report %s ready", report.Protocol),
		notify.Context{
			"report":       notify.RecordRef(stored.ID, RefKindReport, stored.String()),
			"patient":      notify.String(sample.PatientName),
			"finalized_at": notify.Time(report.FinalizedAt),
		},
		attachmentPath,
	)
}

// IssueWorkOrder assigns the next order number, stores the order, renders its
// PDF, and notifies the veterinarian with the document attached.
func (s *Service) IssueWorkOrder(ctx context.Context, order WorkOrder) (notify.Result, error) {
	vet, err := s.store.GetVeterinarian(order.VeterinarianID)
	if err != nil {
		return notify.Result{}, err
	}

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Number == "" {
		order.Number = s.store.NextOrderNumber()
	}
	if order.IssuedAt.IsZero() {
		order.IssuedAt = time.Now()
	}
	if order.Total == 0 {
		for _, item := range order.Items {
			order.Total += float64(item.Quantity) * item.UnitPrice
		}
	}
	s.store.PutWorkOrder(order)

	attachmentPath := s.renderWorkOrderPDF(ctx, order, vet)

	stored, err := s.store.GetWorkOrder(order.ID)
	if err != nil {
		return notify.Result{}, err
	}

	return s.notifier.WorkOrderIssued(ctx, vet.Recipient(),
		fmt.Sprintf("Work order %s issued", order.Number),
		notify.Context{
			"order":     notify.RecordRef(stored.ID, RefKindWorkOrder, stored.String()),
			"total":     notify.Float(order.Total),
			"issued_at": notify.Time(order.IssuedAt),
		},
		attachmentPath,
	)
}

// renderReportPDF is best effort: a report whose document cannot be rendered
// is still announced, just without the attachment.
func (s *Service) renderReportPDF(ctx context.Context, report Report, sample *Sample, vet *Veterinarian) string {
	if s.pdf == nil {
		return ""
	}

	findings := make([]labpdf.ReportSection, len(report.Findings))
	for i, f := range report.Findings {
		findings[i] = labpdf.ReportSection{Title: f.Title, Text: f.Text}
	}

	path, err := s.pdf.WriteDiagnosticReport(labpdf.ReportData{
		ReportID:     report.ID,
		Protocol:     report.Protocol,
		Kind:         sample.Kind,
		PatientName:  sample.PatientName,
		Species:      sample.Species,
		Breed:        sample.Breed,
		OwnerName:    sample.OwnerName,
		Veterinarian: vet.Name,
		ClinicName:   vet.Clinic,
		Material:     sample.Material,
		Findings:     findings,
		Diagnosis:    report.Diagnosis,
		Comments:     report.Comments,
		Pathologist:  report.Pathologist,
		FinalizedAt:  report.FinalizedAt,
	})
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "Failed to render report PDF, notifying without attachment",
			logger.Component("lab.service"),
			slog.String("report_id", report.ID),
			logger.Error(err),
		)
		return ""
	}
	return path
}

func (s *Service) renderWorkOrderPDF(ctx context.Context, order WorkOrder, vet *Veterinarian) string {
	if s.pdf == nil {
		return ""
	}

	items := make([]labpdf.WorkOrderItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = labpdf.WorkOrderItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}

	path, err := s.pdf.WriteWorkOrder(labpdf.WorkOrderData{
		OrderNumber:  order.Number,
		ClinicName:   vet.Clinic,
		Veterinarian: vet.Name,
		Items:        items,
		Total:        order.Total,
		IssuedAt:     order.IssuedAt,
	})
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "Failed to render work order PDF, notifying without attachment",
			logger.Component("lab.service"),
			slog.String("order_id", order.ID),
			logger.Error(err),
		)
		return ""
	}
	return path
}
