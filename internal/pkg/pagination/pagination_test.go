package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetParams(t *testing.T) {
	tests := []struct {
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
		wantOrder  string
	}{
		{"", 1, DefaultLimit, 0, OrderDesc},
		{"?page=3&limit=10", 3, 10, 20, OrderDesc},
		{"?page=0&limit=-1", 1, DefaultLimit, 0, OrderDesc},
		{"?limit=1000", 1, MaxLimit, 0, OrderDesc},
		{"?page=abc", 1, DefaultLimit, 0, OrderDesc},
		{"?order=ASC", 1, DefaultLimit, 0, OrderAsc},
		{"?order=sideways", 1, DefaultLimit, 0, OrderDesc},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			var got *Params
			app.Get("/", func(c *fiber.Ctx) error {
				got = GetParams(c)
				return nil
			})

			_, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
			assert.Equal(t, tt.wantOrder, got.Order)
			assert.Equal(t, tt.wantOrder == OrderAsc, got.Ascending())
		})
	}
}

func TestGetMeta(t *testing.T) {
	meta := GetMeta(&Params{Page: 2, Limit: 10}, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	meta = GetMeta(&Params{Page: 1, Limit: 10}, 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNext)
	assert.False(t, meta.HasPrev)
}
