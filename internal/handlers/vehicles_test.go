package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cheems/transit/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestVehicleList_PlatesFilterAndPagination(t *testing.T) {
	var gotPlates []string
	var gotLimit, gotOffset int
	svc := &MockVehicleService{
		ListFunc: func(ctx context.Context, plates []string, limit, offset int) ([]*models.Vehicle, error) {
			gotPlates, gotLimit, gotOffset = plates, limit, offset
			return []*models.Vehicle{{ID: "v1", Plate: "ABC123"}}, nil
		},
	}

	w := httptest.NewRecorder()
	NewVehicleHandler(svc).List(w, httptest.NewRequest(http.MethodGet, "/vehicles?plates=ABC123,%20XYZ789,&limit=500&offset=10", nil))

	var vehicles []models.Vehicle
	AssertJSONResponse(t, w, http.StatusOK, &vehicles)
	assert.Len(t, vehicles, 1)
	assert.Equal(t, []string{"ABC123", "XYZ789"}, gotPlates)
	assert.Equal(t, 200, gotLimit)
	assert.Equal(t, 10, gotOffset)
}

func TestVehicleGet_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	req := WithURLParam(httptest.NewRequest(http.MethodGet, "/vehicles/missing", nil), "id", "missing")
	NewVehicleHandler(&MockVehicleService{}).Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVehicleCreate(t *testing.T) {
	t.Run("defaults to available", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewVehicleHandler(&MockVehicleService{}).Create(w, NewTestRequest(t, http.MethodPost, "/vehicles",
			map[string]any{"plate": "ABC123", "company": 4}))

		var v models.Vehicle
		AssertJSONResponse(t, w, http.StatusCreated, &v)
		assert.Equal(t, "vehicle-1", v.ID)
		assert.Equal(t, 4, v.Company)
		assert.True(t, v.Available)
	})

	t.Run("missing plate", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewVehicleHandler(&MockVehicleService{}).Create(w, NewTestRequest(t, http.MethodPost, "/vehicles",
			map[string]any{"company": 4}))
		AssertErrorResponse(t, w, http.StatusBadRequest, "field plate required")
	})

	t.Run("duplicate plate", func(t *testing.T) {
		svc := &MockVehicleService{
			CreateFunc: func(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
				return nil, models.ErrConflict
			},
		}
		w := httptest.NewRecorder()
		NewVehicleHandler(svc).Create(w, NewTestRequest(t, http.MethodPost, "/vehicles",
			map[string]any{"plate": "ABC123"}))
		AssertErrorResponse(t, w, http.StatusConflict, "a vehicle with that plate already exists")
	})
}

func TestVehicleUpdate(t *testing.T) {
	svc := &MockVehicleService{
		UpdateFunc: func(ctx context.Context, id string, v *models.Vehicle) (*models.Vehicle, error) {
			v.ID = id
			return v, nil
		},
	}
	req := WithURLParam(NewTestRequest(t, http.MethodPut, "/vehicles/v1",
		map[string]any{"plate": "ABC123", "available": false}), "id", "v1")
	w := httptest.NewRecorder()
	NewVehicleHandler(svc).Update(w, req)

	var v models.Vehicle
	AssertJSONResponse(t, w, http.StatusOK, &v)
	assert.Equal(t, "v1", v.ID)
	assert.False(t, v.Available)
}

func TestVehicleDelete(t *testing.T) {
	var deleted string
	svc := &MockVehicleService{
		DeleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	req := WithURLParam(httptest.NewRequest(http.MethodDelete, "/vehicles/v1", nil), "id", "v1")
	w := httptest.NewRecorder()
	NewVehicleHandler(svc).Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "v1", deleted)
}
