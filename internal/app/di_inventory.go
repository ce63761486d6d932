package app

import (
	"fmt"

	inventoryHTTP "github.com/allisson/invsync/internal/inventory/http"
	inventoryUseCase "github.com/allisson/invsync/internal/inventory/usecase"
)

// InventoryUseCase returns the inventory write use case.
func (c *Container) InventoryUseCase() (inventoryUseCase.InventoryUseCase, error) {
	var err error
	c.inventoryUseCaseInit.Do(func() {
		c.inventoryUseCase, err = c.initInventoryUseCase()
		if err != nil {
			c.initErrors["inventoryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["inventoryUseCase"]; exists {
		return nil, storedErr
	}
	return c.inventoryUseCase, nil
}

// InventoryHandler returns the HTTP handler for inventory writes.
func (c *Container) InventoryHandler() (*inventoryHTTP.InventoryHandler, error) {
	var err error
	c.inventoryHandlerInit.Do(func() {
		c.inventoryHandler, err = c.initInventoryHandler()
		if err != nil {
			c.initErrors["inventoryHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["inventoryHandler"]; exists {
		return nil, storedErr
	}
	return c.inventoryHandler, nil
}

// initInventoryUseCase creates the inventory use case on top of the mutation facade.
func (c *Container) initInventoryUseCase() (inventoryUseCase.InventoryUseCase, error) {
	facade, err := c.Facade()
	if err != nil {
		return nil, fmt.Errorf("failed to get mutation facade for inventory use case: %w", err)
	}

	useCase := inventoryUseCase.NewInventoryUseCase(facade)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for inventory use case: %w", err)
		}
		useCase = inventoryUseCase.NewInventoryUseCaseWithMetrics(useCase, businessMetrics)
	}

	return useCase, nil
}

// initInventoryHandler creates the inventory handler.
func (c *Container) initInventoryHandler() (*inventoryHTTP.InventoryHandler, error) {
	useCase, err := c.InventoryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory use case for inventory handler: %w", err)
	}
	return inventoryHTTP.NewInventoryHandler(useCase, c.Logger()), nil
}
