package core

import (
	"context"
	"time"
)

type (
	// ReceiptData holds the fields laid out on a rendered proof-of-payment document.
	ReceiptData struct {
		Number        string
		StudentName   string
		StudentEmail  string
		CourseName    string
		CourseSubject string
		Amount        int64 // cents
		VerifiedAt    time.Time
		IssuedAt      time.Time
	}

	// ReceiptRenderer is any service that can render a receipt to a document artifact.
	ReceiptRenderer interface {
		Render(ctx context.Context, data ReceiptData) ([]byte, error)
	}

	// ArtifactStore is any service that can durably persist generated artifacts.
	// Save returns a reference the artifact can later be retrieved with.
	ArtifactStore interface {
		Save(ctx context.Context, name string, data []byte) (string, error)
		Load(ctx context.Context, ref string) ([]byte, error)
	}
)
