package s3

import (
	"context"
	"errors"
	"io"
	"testing"

	"lodge/config"
	otelMocks "lodge/infras/otel/mocks"
	"lodge/infras/s3/mocks"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestS3_Upload(t *testing.T) {
	tests := []struct {
		name         string
		bucket       string
		publicDomain string
		putErr       error
		wantBucket   string
		wantURL      string
		wantErr      bool
	}{
		{
			name:         "uses public domain",
			bucket:       "feeds-archive",
			publicDomain: "https://cdn.lodge.test/",
			wantBucket:   "feeds-archive",
			wantURL:      "https://cdn.lodge.test/feeds/room-1/20250601T000000Z.ics",
		},
		{
			name:       "falls back to default bucket",
			wantBucket: "default-bucket",
			wantURL:    "s3://default-bucket/feeds/room-1/20250601T000000Z.ics",
		},
		{
			name:    "put failure",
			bucket:  "feeds-archive",
			putErr:  errors.New("access denied"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			putter := mocks.NewMockobjectPutter(ctrl)

			cfg := &config.Config{}
			cfg.External.S3.BucketName = "default-bucket"
			cfg.External.S3.PublicDomain = tt.publicDomain

			putter.EXPECT().
				PutObject(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
					if tt.wantBucket != "" {
						assert.Equal(t, tt.wantBucket, aws.ToString(in.Bucket))
					}

					assert.Equal(t, "feeds/room-1/20250601T000000Z.ics", aws.ToString(in.Key))
					assert.Equal(t, "text/calendar", aws.ToString(in.ContentType))

					body, err := io.ReadAll(in.Body)
					require.NoError(t, err)
					assert.Equal(t, "BEGIN:VCALENDAR", string(body))

					return &s3.PutObjectOutput{}, tt.putErr
				})

			svc := &s3Impl{client: putter, config: cfg, otel: otelMocks.NewOtel()}

			url, err := svc.Upload(context.Background(), tt.bucket, "feeds/room-1", "20250601T000000Z.ics", "text/calendar", []byte("BEGIN:VCALENDAR"))
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}
