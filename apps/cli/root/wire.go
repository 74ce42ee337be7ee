package root

import (
	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/db"
	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/leases"
	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/payments"
	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/stats"
)

func init() {
	Root().AddCommand(db.Command(Options()))
	Root().AddCommand(leases.Command(Options()))
	Root().AddCommand(payments.Command(Options()))
	Root().AddCommand(stats.Command(Options()))
}
