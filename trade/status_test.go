package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	t.Parallel()

	flat := Facts{}
	long := Facts{NetQuantity: 10}

	tests := []struct {
		name    string
		from    Status
		ev      Event
		facts   Facts
		want    Status
		wantErr error
	}{
		{"enter from planned", StatusPlanned, EventEnter, flat, StatusOpening, nil},
		{"enter twice", StatusOpening, EventEnter, flat, StatusOpening, ErrInvalidTransition},
		{"enter closed", StatusClosed, EventEnter, flat, StatusClosed, ErrInvalidTransition},

		{"stop while open", StatusOpen, EventSetStop, long, StatusOpen, nil},
		{"stop while opening", StatusOpening, EventSetStop, long, StatusOpening, nil},
		{"stop without position", StatusOpen, EventSetStop, flat, StatusOpen, ErrNoPosition},
		{"stop while closing", StatusClosing, EventSetStop, long, StatusClosing, ErrInvalidTransition},
		{"stop planned", StatusPlanned, EventSetStop, flat, StatusPlanned, ErrInvalidTransition},

		{"exit open", StatusOpen, EventExit, long, StatusClosing, nil},
		{"exit again", StatusClosing, EventExit, long, StatusClosing, nil},
		{"exit flat", StatusOpen, EventExit, flat, StatusOpen, ErrNoPosition},
		{"exit planned", StatusPlanned, EventExit, long, StatusPlanned, ErrInvalidTransition},

		{"flatten open", StatusOpen, EventFlatten, flat, StatusClosed, nil},
		{"flatten abandoned plan", StatusPlanned, EventFlatten, flat, StatusClosed, nil},
		{"flatten with position", StatusOpen, EventFlatten, long, StatusOpen, ErrInvalidTransition},
		{"flatten closed", StatusClosed, EventFlatten, flat, StatusClosed, ErrInvalidTransition},
		{"flatten archived", StatusArchived, EventFlatten, flat, StatusArchived, ErrInvalidTransition},

		{"reconcile first fill", StatusOpening, EventReconcile, long, StatusOpen, nil},
		{"reconcile nothing yet", StatusOpening, EventReconcile, flat, StatusOpening, nil},
		{"reconcile clean exit", StatusClosing, EventReconcile, flat, StatusClosed, nil},
		{"reconcile stopped out", StatusOpen, EventReconcile, flat, StatusClosed, nil},
		{"reconcile lingering stop", StatusOpen, EventReconcile, Facts{ActiveOrders: 1}, StatusOpen, nil},
		{"reconcile closed stays", StatusClosed, EventReconcile, flat, StatusClosed, nil},

		{"archive closed", StatusClosed, EventArchive, flat, StatusArchived, nil},
		{"archive open", StatusOpen, EventArchive, long, StatusOpen, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Next(tt.from, tt.ev, tt.facts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	t.Parallel()

	_, err := Next(StatusArchived, EventEnter, Facts{})
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusArchived, te.From)
	assert.Equal(t, "enter not allowed in status ARCHIVED", err.Error())
}
