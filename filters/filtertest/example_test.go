package filtertest_test

import (
	"fmt"
	"net/http"

	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/filters/filtertest"
)

type customFilter struct{}

func (f *customFilter) Request(ctx filters.FilterContext) {
	ctx.StateBag()["filter called"] = true
}

func (f *customFilter) Response(ctx filters.FilterContext) {}

func ExampleContext() {
	req, _ := http.NewRequest("GET", "https://mirror.example.org/zalando", nil)
	ctx := &filtertest.Context{FRequest: req}

	f := &customFilter{}
	f.Request(ctx)

	fmt.Println(ctx.StateBag()["filter called"])

	// Output:
	// true
}
