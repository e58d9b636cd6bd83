// Package rentledger provides a rent billing and payment reconciliation
// engine for hostel management systems.
//
// Rentledger is a library, not a service. Import it into the application
// that already owns students, rooms and beds. It provides:
//
//   - Idempotent monthly rent generation, one obligation per student per month
//   - A one-time late fee on overdue unpaid rent
//   - Payment orders brokered through a Razorpay-compatible gateway
//   - HMAC-verified payment claims and an atomic unpaid to paid settlement
//   - Reproducible PDF invoices
//   - Audit events via the audit hook and metrics via go-utils
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/rentledger"
//	    "github.com/xraph/rentledger/gateway"
//	    "github.com/xraph/rentledger/store/postgres"
//	)
//
//	s := postgres.New(db)
//	gw := gateway.NewRazorpay(keyID, keySecret)
//
//	l := rentledger.New(s, gw,
//	    rentledger.WithLateFee(types.MustParseMoney("200.00", "inr")),
//	    rentledger.WithNotifier(mailer),
//	)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Batch jobs
//
// Schedule these once a day. Both are safe to run repeatedly and
// concurrently; the store enforces uniqueness and one-time fees.
//
//	n, err := l.GenerateRent(ctx, time.Time{})   // this month
//	n, err = l.ApplyLateFees(ctx, time.Time{})   // as of today
//
// # Payments
//
// A student asks for an order, pays through the gateway checkout, and
// submits the signed claim the checkout returns:
//
//	order, err := l.CreatePaymentOrder(ctx, caller, rentID)
//	pay, err := l.SubmitPaymentClaim(ctx, caller, rentID, claim)
//
// The claim settles the rent only if its signature verifies. Concurrent
// claims for the same rent settle it exactly once; the others fail with
// ErrAlreadySettled.
//
// All monetary calculations use integer arithmetic in the smallest
// currency unit (paise for INR).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	rent_01h2xcejqtf2nbrexx3vqjhp41  // Rent ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment ID
//	stu_01h455vb4pex5vsknk084sn02q   // Student ID
package rentledger
