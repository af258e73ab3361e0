package port

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
)

type UserRepository interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	InsertUser(ctx context.Context, user models.User) (primitive.ObjectID, error)

	InsertRefreshToken(ctx context.Context, token models.RefreshToken) (primitive.ObjectID, error)
	GetActiveRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error)
	// RevokeRefreshToken marks an unrevoked token revoked; replacedBy may be
	// nil. An already revoked token reports store.ErrNotFound.
	RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
}

type CustomerRepository interface {
	// UpsertCustomer returns the seller's customer with this email, creating it
	// when missing.
	UpsertCustomer(ctx context.Context, sellerID primitive.ObjectID, email, name string) (models.Customer, error)
	ListCustomers(ctx context.Context, sellerID primitive.ObjectID) ([]models.Customer, error)
}

type ProductRepository interface {
	GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	GetSellerProduct(ctx context.Context, sellerID, id primitive.ObjectID) (models.Product, error)
	GetSellerProducts(ctx context.Context, sellerID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Product, error)
	ListProducts(ctx context.Context, sellerID primitive.ObjectID) ([]models.Product, error)
	InsertProduct(ctx context.Context, product models.Product) (primitive.ObjectID, error)
	UpdateProduct(ctx context.Context, product models.Product) error
	DeleteProduct(ctx context.Context, sellerID, id primitive.ObjectID) error

	AddProductFile(ctx context.Context, sellerID, productID primitive.ObjectID, file models.ProductFile) error
	RemoveProductFile(ctx context.Context, sellerID, productID, fileID primitive.ObjectID) (models.ProductFile, error)
}

type OrderRepository interface {
	InsertOrder(ctx context.Context, order models.Order) (primitive.ObjectID, error)
	GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	GetOrderByConfirmationToken(ctx context.Context, token string) (models.Order, error)
	GetOrderByPaymentID(ctx context.Context, paymentID string) (models.Order, error)
	GetSellerOrder(ctx context.Context, sellerID, id primitive.ObjectID) (models.Order, error)
	ListOrders(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error)
	SetPaymentID(ctx context.Context, id primitive.ObjectID, paymentID string) error
	// TransitionOrder moves the order to a new status in a single conditional
	// update. It fails with store.ErrConflict when the order is in none of the
	// from statuses.
	TransitionOrder(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus, paymentID string, now time.Time) (models.Order, error)
}

type DownloadTokenRepository interface {
	// EnsureToken inserts the token unless one exists for the same order item,
	// and returns whichever record is stored.
	EnsureToken(ctx context.Context, token models.DownloadToken) (models.DownloadToken, error)
	GetToken(ctx context.Context, token string) (models.DownloadToken, error)
	ListOrderTokens(ctx context.Context, orderID primitive.ObjectID) ([]models.DownloadToken, error)
	// ConsumeToken atomically records one download. It decrements a finite
	// counter only while it is positive and the token is unexpired, and fails
	// with store.ErrConflict otherwise.
	ConsumeToken(ctx context.Context, token string, now time.Time, ip string) (models.DownloadToken, error)
}

type CouponRepository interface {
	GetCouponByCode(ctx context.Context, sellerID primitive.ObjectID, code string) (models.Coupon, error)
	GetCoupon(ctx context.Context, sellerID, id primitive.ObjectID) (models.Coupon, error)
	ListCoupons(ctx context.Context, sellerID primitive.ObjectID) ([]models.Coupon, error)
	InsertCoupon(ctx context.Context, coupon models.Coupon) (primitive.ObjectID, error)
	UpdateCoupon(ctx context.Context, coupon models.Coupon) error
	DeleteCoupon(ctx context.Context, sellerID, id primitive.ObjectID) error
	IncrementCouponUsage(ctx context.Context, sellerID primitive.ObjectID, code string) error
}

type CartRepository interface {
	// TrackCart upserts the snapshot fields and keeps the sequence state
	// (createdAt, emailsSent, lastEmailSent, recovered) of an existing entry.
	TrackCart(ctx context.Context, cart models.AbandonedCart, now time.Time) (models.AbandonedCart, error)
	// MarkCartRecovered is a no-op for carts that are already recovered.
	MarkCartRecovered(ctx context.Context, id string, now time.Time) error
	GetCart(ctx context.Context, id string) (models.AbandonedCart, error)
	ListCarts(ctx context.Context, sellerID primitive.ObjectID) ([]models.AbandonedCart, error)
	// ListPendingCarts returns non-recovered carts with an email, oldest first.
	ListPendingCarts(ctx context.Context, createdBefore time.Time) ([]models.AbandonedCart, error)
	// ClaimCartStep advances emailsSent from expectedSent to expectedSent+1 if
	// no email was sent after lastSentBefore. Only one caller can win a claim.
	ClaimCartStep(ctx context.Context, id string, expectedSent int, lastSentBefore, now time.Time) (bool, error)
}

type SequenceRepository interface {
	GetSequence(ctx context.Context, key string) (models.EmailSequence, error)
	PutSequence(ctx context.Context, sequence models.EmailSequence) error
}

type PageRepository interface {
	InsertPage(ctx context.Context, page models.CheckoutPage) (primitive.ObjectID, error)
	GetPublishedPage(ctx context.Context, slug string) (models.CheckoutPage, error)
	GetSellerPage(ctx context.Context, sellerID, id primitive.ObjectID) (models.CheckoutPage, error)
	ListPages(ctx context.Context, sellerID primitive.ObjectID) ([]models.CheckoutPage, error)
	UpdatePage(ctx context.Context, page models.CheckoutPage) error
	DeletePage(ctx context.Context, sellerID, id primitive.ObjectID) error
}

type TemplateRepository interface {
	InsertTemplate(ctx context.Context, tpl models.EmailTemplate) (primitive.ObjectID, error)
	GetTemplateByKind(ctx context.Context, sellerID primitive.ObjectID, kind string) (models.EmailTemplate, error)
	GetSellerTemplate(ctx context.Context, sellerID, id primitive.ObjectID) (models.EmailTemplate, error)
	ListTemplates(ctx context.Context, sellerID primitive.ObjectID) ([]models.EmailTemplate, error)
	UpdateTemplate(ctx context.Context, tpl models.EmailTemplate) error
	DeleteTemplate(ctx context.Context, sellerID, id primitive.ObjectID) error
}

type PlanRepository interface {
	InsertPlan(ctx context.Context, plan models.Plan) (primitive.ObjectID, error)
	GetPlan(ctx context.Context, id primitive.ObjectID) (models.Plan, error)
	ListPlans(ctx context.Context, onlyActive bool) ([]models.Plan, error)
	UpdatePlan(ctx context.Context, plan models.Plan) error
	DeletePlan(ctx context.Context, id primitive.ObjectID) error

	InsertGateway(ctx context.Context, gateway models.PaymentGateway) (primitive.ObjectID, error)
	GetGateway(ctx context.Context, id primitive.ObjectID) (models.PaymentGateway, error)
	ListGateways(ctx context.Context) ([]models.PaymentGateway, error)
	UpdateGateway(ctx context.Context, gateway models.PaymentGateway) error
	DeleteGateway(ctx context.Context, id primitive.ObjectID) error
}
