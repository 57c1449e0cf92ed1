package params

import "os"

// AWS_REGION is the fallback region for s3:// inputs when the shared
// AWS config doesn't name one.
var AWS_REGION = func() string {
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	return "us-east-1"
}()
