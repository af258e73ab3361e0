package memstore

import (
	"digitalcart/internal/port"
)

var (
	_ port.OrderRepository         = (*Store)(nil)
	_ port.ProductRepository       = (*Store)(nil)
	_ port.DownloadTokenRepository = (*Store)(nil)
	_ port.CouponRepository        = (*Store)(nil)
	_ port.CustomerRepository      = (*Store)(nil)
	_ port.CartRepository          = (*Store)(nil)
	_ port.SequenceRepository      = (*Store)(nil)
	_ port.TemplateRepository      = (*Store)(nil)
)

var (
	_ port.UserRepository = (*Accounts)(nil)
	_ port.PageRepository = (*Accounts)(nil)
	_ port.PlanRepository = (*Accounts)(nil)
)
