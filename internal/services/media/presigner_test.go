package media

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/models"
)

func TestParseS3URI(t *testing.T) {
	cases := []struct {
		ref    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://evidence/cam_1/2024/03/01/snap.jpg", "evidence", "cam_1/2024/03/01/snap.jpg", true},
		{"s3://evidence/clip.mp4", "evidence", "clip.mp4", true},
		{"s3://evidence", "", "", false},
		{"s3://evidence/", "", "", false},
		{"s3:///key", "", "", false},
		{"/var/snapshots/snap.jpg", "", "", false},
		{"https://cdn.example.com/snap.jpg", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		bucket, key, ok := ParseS3URI(tc.ref)
		assert.Equal(t, tc.ok, ok, tc.ref)
		assert.Equal(t, tc.bucket, bucket, tc.ref)
		assert.Equal(t, tc.key, key, tc.ref)
	}
}

type fakePresigner struct {
	calls []string
	err   error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.calls = append(f.calls, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + aws.ToString(in.Key)}, nil
}

func TestDecorate(t *testing.T) {
	p := &fakePresigner{}
	d := NewDecoratorWithPresigner(&config.Config{}, p)

	alert := &models.Alert{SnapshotPath: "s3://evidence/snap.jpg", VideoClipPath: "/clips/c.mp4"}
	d.Decorate(context.Background(), alert)

	assert.Equal(t, "https://signed.example/snap.jpg", alert.SnapshotURL)
	assert.Equal(t, "/clips/c.mp4", alert.VideoClipURL)
	assert.Equal(t, []string{"evidence/snap.jpg"}, p.calls)
	assert.Equal(t, "s3://evidence/snap.jpg", alert.SnapshotPath)
}

func TestDecorate_PresignFailure(t *testing.T) {
	d := NewDecoratorWithPresigner(&config.Config{}, &fakePresigner{err: errors.New("no credentials")})

	alert := &models.Alert{SnapshotPath: "s3://evidence/snap.jpg"}
	d.Decorate(context.Background(), alert)

	assert.Empty(t, alert.SnapshotURL)
	assert.Empty(t, alert.VideoClipURL)
}

func TestURL_RealPresignClient(t *testing.T) {
	client := s3.New(s3.Options{
		Region: "eu-west-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}, nil
		}),
	})
	d := NewDecoratorWithPresigner(&config.Config{S3PresignTTL: 5 * time.Minute}, s3.NewPresignClient(client))

	raw := d.URL(context.Background(), "s3://evidence/cam_1/snap.jpg")
	require.NotEmpty(t, raw)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Contains(t, u.Host+u.Path, "evidence")
	assert.Contains(t, u.Path, "cam_1/snap.jpg")
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
