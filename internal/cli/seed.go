package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/haullog/internal/db"
	"github.com/haullog/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// 示例车队，用于生成演示与测试数据
var sampleFleet = []struct {
	truckType   string
	make        string
	site        string
	facilitator string
	leaseRate   int64
}{
	{"Tipper", "Volvo", "North Pit", "Ade Logistics", 450000},
	{"Excavator", "CAT", "South Pit", "Bello Haulage", 900000},
	{"Dump Truck", "Howo", "East Ridge", "", 0},
}

type seedOptions struct {
	days  int
	end   string
	force bool
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	sopts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate sample daily operations for demos and local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			end := time.Now().UTC()
			if sopts.end != "" {
				if end, err = time.Parse(service.DateLayout, sopts.end); err != nil {
					return fmt.Errorf("invalid --end %q: %w", sopts.end, err)
				}
			}

			_, err = seedOperations(cmd.OutOrStdout(), rt.db, end, sopts.days, sopts.force)
			return err
		},
	}
	cmd.Flags().IntVar(&sopts.days, "days", 30, "number of days to generate, ending at --end")
	cmd.Flags().StringVar(&sopts.end, "end", "", "last operation date (YYYY-MM-DD), defaults to today")
	cmd.Flags().BoolVar(&sopts.force, "force", false, "generate even when records already exist")
	return cmd
}

// seedOperations 为 sampleFleet 中每台设备生成 days 天的记录，已有数据时跳过。
func seedOperations(w io.Writer, gdb *gorm.DB, end time.Time, days int, force bool) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be positive")
	}

	var count int64
	if err := gdb.Model(&db.DailyOperation{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	if count > 0 && !force {
		fmt.Fprintf(w, "%d operations already exist, skipping seed\n", count)
		return 0, nil
	}

	svc := service.NewOperationService(gdb)
	end = db.DateOnly(end)
	start := end.AddDate(0, 0, -(days - 1))
	created := 0

	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		for i, unit := range sampleFleet {
			trips := 3 + (d+i)%5
			input := service.OperationInput{
				TruckType:       unit.truckType,
				EquipmentMake:   unit.make,
				SiteLocation:    unit.site,
				PersonType:      db.PersonTypeDriver,
				PersonName:      fmt.Sprintf("Driver %d", i+1),
				TripsCovered:    &trips,
				OperationDate:   day.Format(service.DateLayout),
				FacilitatorName: unit.facilitator,
				SignIn:          "07:00",
				SignOut:         "17:30",
				FuelAmount:      decimal.NewNullDecimal(decimal.NewFromInt(int64(40 + 5*trips))),
			}
			if unit.facilitator != "" {
				input.TotalLeaseRate = decimal.NewNullDecimal(decimal.NewFromInt(unit.leaseRate))
				input.LeaseStartDate = start.Format(service.DateLayout)
				input.LeaseEndDate = end.AddDate(0, 0, 14).Format(service.DateLayout)
				input.LeasePaymentStatus = db.PaymentOutstanding
			}
			if (d+i)%7 == 0 {
				input.HadBreakdown = true
				input.BreakdownExplained = "hydraulic leak"
				input.HoursLost = decimal.NewNullDecimal(decimal.NewFromFloat(2.5))
			}
			if d%9 == 4 {
				input.HadRain = true
				input.RainHoursLost = decimal.NewNullDecimal(decimal.NewFromInt(1))
			}

			if _, err := svc.Create(input); err != nil {
				return created, fmt.Errorf("seed %s %s on %s: %w", unit.make, unit.truckType, input.OperationDate, err)
			}
			created++
		}
	}

	fmt.Fprintf(w, "created %d operations from %s to %s\n", created, start.Format(service.DateLayout), end.Format(service.DateLayout))
	return created, nil
}
