package catalog

import "testing"

func TestStatusName(t *testing.T) {
	cases := map[int]string{
		StatusUncatalogued:       "UNCATALOGUED",
		StatusFetchPostError:     "FETCH_POST_ERROR",
		StatusFetchImageError:    "FETCH_IMAGE_ERROR",
		StatusClassifyImageError: "CLASSIFY_IMAGE_ERROR",
		StatusDropped:            "DROPPED",
		StatusComplete:           "COMPLETE",
		99:                       "UNKNOWN",
	}
	for id, want := range cases {
		if got := StatusName(id); got != want {
			t.Errorf("StatusName(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestResultClassification(t *testing.T) {
	cases := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"no images", nil, 0},
		{"all negative", []float64{0.1, 0.4}, 0},
		{"one positive", []float64{0.1, 0.6}, 1},
		{"boundary", []float64{0.5}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := Result{Status: StatusComplete}
			for _, s := range c.scores {
				res.Images = append(res.Images, Image{Score: s})
			}
			if got := res.Classification(); got != c.want {
				t.Errorf("Classification() = %d, want %d", got, c.want)
			}
		})
	}
}
