package route

import (
	"fmt"

	"github.com/evergreen-ci/slither"
	"go.opentelemetry.io/otel"
)

var packageName = fmt.Sprintf("%s%s", slither.PackageName, "/rest/route")

var tracer = otel.GetTracerProvider().Tracer(packageName)

const (
	resourceAttribute = "slither.route.resource"
	methodAttribute   = "slither.route.method"
	statusAttribute   = "slither.route.status"
)
