package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/mapper"
	"github.com/jafarshop/delifast/internal/repository"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

// DefaultSettings are returned for a shop that never saved settings
func DefaultSettings(shop string) *domain.StoreSettings {
	return &domain.StoreSettings{
		Shop:           shop,
		Mode:           domain.DeliveryModeManual,
		AutoSendStatus: domain.AutoSendTriggerPaid,
		DefaultCityID:  mapper.CityDubai,
		FeesOnSender:   true,
		FeesPaid:       true,
	}
}

// SettingsService reads and validates merchant settings
type SettingsService struct {
	repo     repository.StoreSettingsRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo repository.StoreSettingsRepository, logger *zap.Logger) *SettingsService {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so API clients see the keys they sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &SettingsService{
		repo:     repo,
		validate: v,
		logger:   logger,
	}
}

// Get returns the stored settings; the bool is false when defaults were returned
func (s *SettingsService) Get(ctx context.Context, shop string) (*domain.StoreSettings, bool, error) {
	settings, err := s.repo.Get(ctx, shop)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load store settings: %w", err)
	}
	if settings == nil {
		return DefaultSettings(shop), false, nil
	}
	return settings, true, nil
}

// Save validates and stores settings for the shop
func (s *SettingsService) Save(ctx context.Context, shop string, settings *domain.StoreSettings) (*domain.StoreSettings, error) {
	settings.Shop = shop
	if err := s.validate.Struct(settings); err != nil {
		return nil, validationError(err)
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save store settings: %w", err)
	}
	s.logger.Info("Store settings saved",
		zap.String("shop", shop),
		zap.String("mode", string(settings.Mode)),
		zap.String("auto_send_status", string(settings.AutoSendStatus)),
	)
	return settings, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &pkgerrors.ErrValidation{Message: err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &pkgerrors.ErrValidation{Message: "invalid store settings", Fields: fields}
}
