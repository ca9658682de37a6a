package vecora_test

import (
	"context"
	"fmt"

	"github.com/vecora/vecora"
	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/metadata"
	"github.com/vecora/vecora/model"
)

func Example() {
	ctx := context.Background()

	c, err := vecora.New(3, distance.MetricCosine)
	if err != nil {
		panic(err)
	}
	defer c.Close()

	_, err = c.Upsert(ctx, true,
		model.Point{ID: 1, Vector: []float32{1, 0, 0}, Payload: metadata.Document{"lang": metadata.String("go")}},
		model.Point{ID: 2, Vector: []float32{0, 1, 0}, Payload: metadata.Document{"lang": metadata.String("rust")}},
		model.Point{ID: 3, Vector: []float32{0.9, 0.1, 0}, Payload: metadata.Document{"lang": metadata.String("go")}},
	)
	if err != nil {
		panic(err)
	}

	filter := metadata.NewFilterSet(metadata.Filter{
		Key: "lang", Operator: metadata.OpEqual, Value: metadata.String("go"),
	})
	results, err := c.Search(ctx, model.SearchRequest{
		Vector: []float32{1, 0, 0},
		Filter: filter,
		Top:    2,
	})
	if err != nil {
		panic(err)
	}

	for _, r := range results {
		fmt.Println(r.ID)
	}
	// Output:
	// 1
	// 3
}
