package data

import (
	"fmt"

	"github.com/evergreen-ci/slither"
	"go.opentelemetry.io/otel"
)

var packageName = fmt.Sprintf("%s%s", slither.PackageName, "/rest/data")

var tracer = otel.GetTracerProvider().Tracer(packageName)

const (
	collectionAttribute  = "slither.data.collection"
	recordIdAttribute    = "slither.data.record_id"
	fullReplaceAttribute = "slither.data.full_replace"
	resultCountAttribute = "slither.data.result_count"
)
