package meridian_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	meridian "github.com/meridianlive/meridian-go"
	"github.com/meridianlive/meridian-go/mocks"
)

func testLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func facility(short, org, agent string) meridian.Facility {
	f := meridian.Facility{
		OrganizationID: org,
		FacilityID:     short + "-id",
		DisplayName:    short,
		ShortName:      short,
	}
	if agent != "" {
		f.Agents = []meridian.Agent{{AgentID: agent}}
	}
	return f
}

// compressor builds a compressor device publishing suction and discharge
// pressure aliases derived from the device alias.
func compressor(id, alias string) meridian.Device {
	return meridian.Device{
		ID:    id,
		Name:  "Compressor " + id,
		Alias: alias,
		Kind:  meridian.KindCompressor,
		Properties: []meridian.Property{
			{Key: "SuctionPressure", Value: meridian.PropertyValue{Alias: alias + "/SuctionPressure"}},
			{Key: "DischargePressure", Value: meridian.PropertyValue{Alias: alias + "/DischargePressure"}},
		},
	}
}

func analogPage(pointID string, start time.Time, interval time.Duration, values ...float64) *meridian.HistoricalPage {
	timestamps := make([]int64, len(values))
	for i := range values {
		timestamps[i] = start.Add(time.Duration(i) * interval).Unix()
	}
	return &meridian.HistoricalPage{
		Values: []meridian.HistoricalValues{{
			PointID: pointID,
			Values: map[meridian.AggregateBy]meridian.PointValues{
				meridian.AggregateAvg: {Analog: &meridian.AnalogValues{Timestamps: timestamps, Values: values}},
			},
		}},
	}
}

func suctionFilter(facilities ...string) meridian.Filter {
	return meridian.Filter{
		Facilities: facilities,
		Metrics:    []meridian.DeviceMetric{meridian.NewDeviceMetric(meridian.KindCompressor, meridian.SuctionPressure)},
	}
}

func TestMetricsReaderRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Minute)

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{facility("plant-a", "org-1", "agent-1")}, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", "agent-1").Return([]meridian.Device{compressor("dev-1", "C1")}, nil)
	api.EXPECT().GetPointIDs(gomock.Any(), "org-1", "agent-1", []string{"C1/SuctionPressure"}).
		Return(map[string]string{"C1/SuctionPressure": "p-1"}, nil)
	api.EXPECT().GetHistoricalValues(gomock.Any(), "org-1", "agent-1", meridian.HistoricalRequest{
		PointIDs:    []string{"p-1"},
		Start:       start,
		End:         end,
		Interval:    time.Minute,
		AggregateBy: []meridian.AggregateBy{meridian.AggregateAvg},
	}).Return(analogPage("p-1", start, time.Minute, 41.5, 42.5), nil)

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	result, err := reader.Read(context.Background(), suctionFilter(), start, end, time.Minute)
	require.NoError(t, err)
	require.Empty(t, result.Failed())

	fs := result.Facilities["plant-a"]
	require.NotNil(t, fs)
	require.Len(t, fs.Series, 1)

	series := fs.Series[0]
	assert.Equal(t, "SuctionPressure", series.Label)
	assert.Equal(t, "dev-1", series.DeviceID)
	assert.Equal(t, "C1", series.DeviceAlias)
	require.Len(t, series.Samples, 3)
	assert.Equal(t, meridian.Sample{Timestamp: start, Value: 41.5, Valid: true}, series.Samples[0])
	assert.Equal(t, meridian.Sample{Timestamp: start.Add(time.Minute), Value: 42.5, Valid: true}, series.Samples[1])
	assert.False(t, series.Samples[2].Valid, "bucket with no data is present but invalid")
	assert.Equal(t, start.Add(2*time.Minute), series.Samples[2].Timestamp)
}

func TestMetricsReaderReadPartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{
		facility("plant-a", "org-1", "agent-1"),
		facility("plant-b", "org-1", "agent-2"),
	}, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", "agent-1").Return([]meridian.Device{compressor("dev-1", "C1")}, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", "agent-2").Return(nil, errors.New("agent offline"))
	api.EXPECT().GetPointIDs(gomock.Any(), "org-1", "agent-1", gomock.Any()).
		Return(map[string]string{"C1/SuctionPressure": "p-1"}, nil)
	api.EXPECT().GetHistoricalValues(gomock.Any(), "org-1", "agent-1", gomock.Any()).
		Return(analogPage("p-1", start, time.Minute, 41.5), nil)

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	result, err := reader.Read(context.Background(), suctionFilter(), start, end, time.Minute)
	require.NoError(t, err, "one healthy facility keeps the read alive")

	require.Len(t, result.Facilities, 2)
	assert.NotEmpty(t, result.Facilities["plant-a"].Series)

	failed := result.Failed()
	require.Len(t, failed, 1)
	var fe *meridian.FacilityError
	require.ErrorAs(t, failed["plant-b"], &fe)
	assert.Equal(t, "plant-b", fe.Facility)
	assert.Equal(t, "resolve points", fe.Op)
	assert.Empty(t, result.Facilities["plant-b"].Series)
}

func TestMetricsReaderReadAllFacilitiesFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{
		facility("plant-a", "org-1", "agent-1"),
		facility("plant-b", "org-1", "agent-2"),
	}, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", gomock.Any()).
		Times(2).
		Return(nil, errors.New("agent offline"))

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := reader.Read(context.Background(), suctionFilter(), start, start.Add(time.Minute), time.Minute)
	assert.ErrorIs(t, err, meridian.ErrAllFacilitiesFailed)
	assert.Nil(t, result)
}

func TestMetricsReaderReadUnknownFacility(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{facility("plant-a", "org-1", "agent-1")}, nil)

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := reader.Read(context.Background(), suctionFilter("ghost"), start, start.Add(time.Minute), time.Minute)
	assert.ErrorIs(t, err, meridian.ErrUnknownFacility)
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestMetricsReaderReadFacilityWithoutAgent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{facility("plant-a", "org-1", "")}, nil)

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := reader.Read(context.Background(), suctionFilter("plant-a"), start, start.Add(time.Minute), time.Minute)
	assert.ErrorIs(t, err, meridian.ErrUnknownFacility)
	assert.Contains(t, err.Error(), "no agent installed")
}

func TestMetricsReaderReadRejectsBadIntervals(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := meridian.NewMetricsReader(mocks.NewMockPlatformAPI(ctrl), meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, interval := range []time.Duration{0, -time.Minute, 1500 * time.Millisecond} {
		_, err := reader.Read(context.Background(), suctionFilter(), start, start.Add(time.Minute), interval)
		assert.ErrorIs(t, err, meridian.ErrInvalidFilter, "interval %s", interval)
	}
}

func TestMetricsReaderReadRejectsEmptyWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := meridian.NewMetricsReader(mocks.NewMockPlatformAPI(ctrl), meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := reader.Read(context.Background(), suctionFilter(), start, start, time.Minute)
	assert.ErrorIs(t, err, meridian.ErrInvalidFilter)

	_, err = reader.Read(context.Background(), suctionFilter(), start.Add(time.Hour), start, time.Minute)
	assert.ErrorIs(t, err, meridian.ErrInvalidFilter)
}

func TestMetricsReaderReadRejectsInvalidFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := meridian.NewMetricsReader(mocks.NewMockPlatformAPI(ctrl), meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := reader.Read(context.Background(), meridian.Filter{}, start, start.Add(time.Minute), time.Minute)
	assert.ErrorIs(t, err, meridian.ErrInvalidFilter)
}

func TestMetricsReaderReadCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{facility("plant-a", "org-1", "agent-1")}, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", "agent-1").DoAndReturn(
		func(ctx context.Context, org, agent string) ([]meridian.Device, error) {
			cancel()
			return nil, ctx.Err()
		})

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := reader.Read(ctx, suctionFilter(), start, start.Add(time.Minute), time.Minute)
	assert.ErrorIs(t, err, meridian.ErrQueryCancelled)
	assert.Nil(t, result, "a cancelled read never returns partial data")
}

func TestMetricsReaderReadTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{facility("plant-a", "org-1", "agent-1")}, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", "agent-1").DoAndReturn(
		func(ctx context.Context, org, agent string) ([]meridian.Device, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := reader.Read(ctx, suctionFilter(), start, start.Add(time.Minute), time.Minute)
	assert.ErrorIs(t, err, meridian.ErrQueryTimeout)
	assert.Nil(t, result)
}

func TestMetricsReaderReadBoundsConcurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	facilities := make([]meridian.Facility, 6)
	for i := range facilities {
		short := string(rune('a' + i))
		facilities[i] = facility("plant-"+short, "org-1", "agent-"+short)
	}

	var mu sync.Mutex
	current, peak := 0, 0

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return(facilities, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", gomock.Any()).Times(6).DoAndReturn(
		func(ctx context.Context, org, agent string) ([]meridian.Device, error) {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			current--
			mu.Unlock()
			return nil, nil
		})

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{
		Logger:                  testLog(),
		MaxConcurrentFacilities: 2,
	})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := reader.Read(context.Background(), suctionFilter(), start, start.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Len(t, result.Facilities, 6)
	assert.Empty(t, result.Failed())

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "facility fan-out must respect MaxConcurrentFacilities")
}

func TestMetricsReaderReadSelectsAgentedFacilities(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{
		facility("plant-a", "org-1", "agent-1"),
		facility("plant-b", "org-1", ""),
		facility("plant-c", "org-1", "agent-3"),
	}, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", "agent-1").Return(nil, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", "agent-3").Return(nil, nil)

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := reader.Read(context.Background(), suctionFilter(), start, start.Add(time.Minute), time.Minute)
	require.NoError(t, err)

	assert.Len(t, result.Facilities, 2)
	assert.Contains(t, result.Facilities, "plant-a")
	assert.Contains(t, result.Facilities, "plant-c")
	assert.NotContains(t, result.Facilities, "plant-b", "agentless facilities are skipped on wildcard reads")
}

func TestMetricsReaderReadDefaultWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var got meridian.HistoricalRequest

	api := mocks.NewMockPlatformAPI(ctrl)
	api.EXPECT().ListFacilities(gomock.Any()).Return([]meridian.Facility{facility("plant-a", "org-1", "agent-1")}, nil)
	api.EXPECT().ListDevices(gomock.Any(), "org-1", "agent-1").Return([]meridian.Device{compressor("dev-1", "C1")}, nil)
	api.EXPECT().GetPointIDs(gomock.Any(), "org-1", "agent-1", gomock.Any()).
		Return(map[string]string{"C1/SuctionPressure": "p-1"}, nil)
	api.EXPECT().GetHistoricalValues(gomock.Any(), "org-1", "agent-1", gomock.Any()).DoAndReturn(
		func(ctx context.Context, org, agent string, req meridian.HistoricalRequest) (*meridian.HistoricalPage, error) {
			got = req
			return &meridian.HistoricalPage{}, nil
		})

	reader := meridian.NewMetricsReader(api, meridian.ReaderConfig{Logger: testLog()})
	before := time.Now()
	_, err := reader.Read(context.Background(), suctionFilter(), time.Time{}, time.Time{}, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, meridian.DefaultReadWindow, got.End.Sub(got.Start))
	assert.WithinDuration(t, before, got.End, 5*time.Second)
}
