package pricing

import (
	"fmt"
	"math"

	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/seatmap"
)

const (
	// InfantFeePerSegment is charged for each infant on each flight segment.
	InfantFeePerSegment int64 = 100000
	// TaxRate is applied to the total before taxes.
	TaxRate = 0.10
)

// Resolver resolves a seat to its fare on one flight.
type Resolver interface {
	FareInfo(code string) (seatmap.FareInfo, bool)
}

type Segment struct {
	FlightID string
	Seats    []string
	Resolver Resolver
}

type Input struct {
	Segments []Segment
	Baggage  []domain.BaggageSelection
	Infants  int
	Voucher  *domain.Voucher
}

// Compute derives the full price breakdown from the current selections. It
// has no side effects and never fails: seats that cannot be resolved count as
// ECONOMY at price 0.
func Compute(in Input) domain.PriceBreakdown {
	var pb domain.PriceBreakdown

	multi := len(in.Segments) > 1
	groups := make(map[string]int)
	pb.GroupedSeats = []domain.SeatGroup{}

	for i, seg := range in.Segments {
		for _, code := range seg.Seats {
			price, fareType := resolve(seg.Resolver, code)
			pb.Subtotal += price

			label := DisplayClass(fareType)
			if multi {
				label = fmt.Sprintf("Segment %d - %s", i+1, label)
			}
			gi, ok := groups[label]
			if !ok {
				gi = len(pb.GroupedSeats)
				groups[label] = gi
				pb.GroupedSeats = append(pb.GroupedSeats, domain.SeatGroup{Label: label})
			}
			pb.GroupedSeats[gi].Count++
			pb.GroupedSeats[gi].TotalPrice += price
		}
	}

	if in.Infants > 0 {
		pb.InfantTotal = InfantFeePerSegment * int64(in.Infants) * int64(len(in.Segments))
	}

	for _, b := range in.Baggage {
		pb.BaggageTotal += b.Price
	}

	pb.TotalBeforeTaxes = pb.Subtotal + pb.InfantTotal + pb.BaggageTotal
	pb.TaxesAndFees = int64(math.Round(float64(pb.TotalBeforeTaxes) * TaxRate))
	pb.TotalWithTaxes = pb.TotalBeforeTaxes + pb.TaxesAndFees
	pb.Discount = Discount(in.Voucher, pb.TotalWithTaxes)
	pb.Total = max(0, pb.TotalWithTaxes-pb.Discount)

	return pb
}

// Discount resolves a voucher against the total with taxes. A precomputed
// amount wins; otherwise a percentage applies once the minimum purchase is
// reached, capped by the maximum discount when one is set.
func Discount(v *domain.Voucher, totalWithTaxes int64) int64 {
	if v == nil {
		return 0
	}

	if v.DiscountAmount != nil {
		return max(0, *v.DiscountAmount)
	}

	if v.DiscountPercentage != nil && totalWithTaxes >= v.MinimumPurchaseAmount {
		d := int64(math.Round(float64(totalWithTaxes) * *v.DiscountPercentage / 100))
		if v.MaximumDiscountAmount != nil && d > *v.MaximumDiscountAmount {
			d = *v.MaximumDiscountAmount
		}
		return max(0, d)
	}

	return 0
}

func resolve(r Resolver, code string) (int64, domain.FareType) {
	if r == nil {
		return 0, domain.FareEconomy
	}
	info, ok := r.FareInfo(code)
	if !ok {
		return 0, domain.FareEconomy
	}
	return info.Price, info.FareType
}

// DisplayClass is the label used for a fare type in itemised summaries.
func DisplayClass(f domain.FareType) string {
	return seatmap.DisplayName(f)
}
