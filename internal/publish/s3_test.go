package publish

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/internal/batch"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
)

type fakePutter struct {
	objects map[string]string
	types   map[string]string
	err     error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string]string{}
		f.types = map[string]string{}
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = string(b)
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestSink_Deliver(t *testing.T) {
	ds, err := dataset.Decode([]byte("reference_date,target_end_date,report_week,pathogen,ili_percent,sari_percent\n" +
		"2025-09-01,2025-09-07,36,新型冠状病毒,6.8,3.7\n" +
		"2025-09-01,2025-09-07,36,流感病毒,1.2,0.9\n"))
	require.NoError(t, err)
	fake := &fakePutter{}
	sink := Sink{Publisher: NewS3Publisher(fake, "bucket", "/surveillance/", nil), Covid: true}

	require.NoError(t, sink.Deliver(context.Background(), ds, &batch.RunReport{RunID: "r1"}))

	require.Len(t, fake.objects, 3)
	assert.Contains(t, fake.objects["bucket/surveillance/surveillance_all.csv"], "流感病毒")
	covid := fake.objects["bucket/surveillance/surveillance_covid.csv"]
	assert.Contains(t, covid, "新型冠状病毒")
	assert.NotContains(t, covid, "流感病毒")
	assert.Contains(t, fake.objects["bucket/surveillance/runs/r1.json"], `"run_id": "r1"`)
	assert.Equal(t, "application/json", fake.types["bucket/surveillance/runs/r1.json"])
	assert.Equal(t, "s3", sink.Name())
}

func TestPublish_Error(t *testing.T) {
	p := NewS3Publisher(&fakePutter{err: errors.New("denied")}, "b", "", nil)
	err := p.Publish(context.Background(), "x.csv", []byte("a"), "text/csv", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "s3://b/x.csv"))
	assert.Equal(t, "x.csv", p.Key("x.csv"))
}
