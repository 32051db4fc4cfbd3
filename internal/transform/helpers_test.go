package transform_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

func TestISODuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{12, "PT12S"},
		{90, "PT1M30S"},
		{12.5, "PT12.5S"},
		{3600, "PT1H"},
		{90000, "P1DT1H"},
		{86400, "P1D"},
		{0, "P0D"},
		{3723, "PT1H2M3S"},
		{59.9999999, "PT1M"},
		{3599.9999999, "PT1H"},
		{86399.9999999, "P1D"},
		{0.0000001, "P0D"},
		{0.25, "PT0.25S"},
		{61.000001, "PT1M1.000001S"},
		{-90, "-PT1M30S"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, transform.ISODuration(tt.seconds), "seconds=%v", tt.seconds)
	}
}

func TestISOTime(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{"2021-11-02T09:57:33.618816+00:00", "2021-11-02T09:57:33.618Z"},
		{"2021-11-02T14:57:33+05:00", "2021-11-02T09:57:33.000Z"},
		{"2021-11-02 09:57:33.618816+00:00", "2021-11-02T09:57:33.618Z"},
		{"2021-11-02T09:57:33.618816", "2021-11-02T09:57:33.618Z"},
		{time.Date(2021, 11, 2, 9, 57, 33, 0, time.UTC), "2021-11-02T09:57:33.000Z"},
	}
	for _, tt := range tests {
		got, err := transform.ISOTime(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := transform.ISOTime("yesterday")
	assert.Error(t, err)
	_, err = transform.ISOTime(nil)
	assert.Error(t, err)
}

func TestBlockIDFromReferrer(t *testing.T) {
	id, ok := transform.BlockIDFromReferrer(
		"http://localhost:18000/courses/course-v1:edX+DemoX+Demo_Course/jump_to/x?activate_block_id=block-v1%3AedX%2BDemoX%2Btype%40problem%2Bblock%40abc")
	require.True(t, ok)
	assert.Equal(t, "block-v1:edX+DemoX+type@problem+block@abc", id)

	_, ok = transform.BlockIDFromReferrer("http://localhost:18000/courses/x")
	assert.False(t, ok)
	_, ok = transform.BlockIDFromReferrer("")
	assert.False(t, ok)
}

func TestVideoBlockIDAndCourseURL(t *testing.T) {
	assert.Equal(t, "block-v1:course-v1:edX+DemoX+Demo+type@video+block@abc",
		transform.VideoBlockID("course-v1:edX+DemoX+Demo", "abc"))
	assert.Equal(t, "http://lms/courses/course-v1:a+b+c", transform.CourseURL("http://lms/", "course-v1:a+b+c"))
}
