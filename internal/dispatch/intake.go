package dispatch

import (
	"context"

	"venueboard/internal/models"

	"github.com/google/uuid"
)

// Intake sends board booking requests straight to the remote store as
// new_booking events, bypassing the tabular source. Each record gets a
// transaction id here, since no sheet row exists to carry one.
type Intake struct {
	client *Client
}

func NewIntake(client *Client) *Intake {
	return &Intake{client: client}
}

func (i *Intake) Append(ctx context.Context, rec models.BookingRecord) error {
	if rec.TransactionID == "" {
		rec.TransactionID = uuid.NewString()
	}
	return i.client.SendOne(ctx, rec)
}
