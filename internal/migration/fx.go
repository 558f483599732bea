package migration

import (
	"github.com/smallbiznis/paygate/internal/config"
	customerdomain "github.com/smallbiznis/paygate/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/paygate/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	webhookdomain "github.com/smallbiznis/paygate/internal/webhook/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite has no versioned migration path; used for local runs only.
		return conn.AutoMigrate(
			&customerdomain.Customer{},
			&orderdomain.Order{},
			&paymentdomain.Payment{},
			&invoicedomain.RegistrationInvoice{},
			&webhookdomain.EventRecord{},
		)
	}),
)
