package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"SliceSizzle/internal/catalog"
)

func newCatalogTS(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := catalog.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	h := catalog.NewHandler(&catalog.Server{Store: store}, catalog.HTTPDeps{
		Log:     zap.NewNop(),
		Service: "catalog",
	})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestCatalog_ListFiltered(t *testing.T) {
	ts := newCatalogTS(t)

	var products []catalog.Product
	if code := getJSON(t, ts.URL+"/api/products?category=drink&sort=price-high", &products); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if len(products) != 2 {
		t.Fatalf("drinks=%d", len(products))
	}
	if products[0].Price.LessThan(products[1].Price) {
		t.Fatalf("not sorted by price desc: %s < %s", products[0].Price, products[1].Price)
	}
}

func TestCatalog_UnknownSort(t *testing.T) {
	ts := newCatalogTS(t)
	if code := getJSON(t, ts.URL+"/api/products?sort=random", nil); code != http.StatusBadRequest {
		t.Fatalf("status=%d", code)
	}
}

func TestCatalog_GetAndNotFound(t *testing.T) {
	ts := newCatalogTS(t)

	var p catalog.Product
	if code := getJSON(t, ts.URL+"/api/products/pizza-margherita", &p); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if p.Name != "Margherita" || !p.HasTag("vegetarian") {
		t.Fatalf("product=%+v", p)
	}

	if code := getJSON(t, ts.URL+"/api/products/nope", nil); code != http.StatusNotFound {
		t.Fatalf("status=%d", code)
	}
}

func TestCatalog_CategoriesAndProbes(t *testing.T) {
	ts := newCatalogTS(t)

	var cats []catalog.Category
	if code := getJSON(t, ts.URL+"/api/categories", &cats); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if len(cats) == 0 || cats[0].ID != "pizza" {
		t.Fatalf("categories=%+v", cats)
	}

	for _, p := range []string{"/healthz", "/readyz"} {
		if code := getJSON(t, ts.URL+p, nil); code != http.StatusOK {
			t.Fatalf("%s status=%d", p, code)
		}
	}
}
