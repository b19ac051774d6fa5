package scrapingdog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePlaces_List(t *testing.T) {
	t.Parallel()

	places, err := DecodePlaces([]byte(`[{"title":"Acme Care","address":"1 Jalan Ampang, Kuala Lumpur","website":"https://acme.my"}]`))
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "https://acme.my", places[0].Site())
}

func TestDecodePlaces_SearchResults(t *testing.T) {
	t.Parallel()

	body := `{"search_results":[
		{"title":"A","address":"1 Main St","gps_coordinates":{"latitude":3.1,"longitude":101.7}},
		{"title":"B","formatted_address":"2 Main St","website_url":"https://b.example"}
	]}`
	places, err := DecodePlaces([]byte(body))
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.InDelta(t, 3.1, places[0].GPS.Latitude, 0.0001)
	assert.Equal(t, "https://b.example", places[1].Site())
}

func TestDecodePlaces_SinglePlace(t *testing.T) {
	t.Parallel()

	places, err := DecodePlaces([]byte(`{"name":"Solo","formatted_address":"3 Main St"}`))
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "3 Main St", places[0].FormattedAddress)
}

func TestDecodePlaces_EmptyObject(t *testing.T) {
	t.Parallel()

	places, err := DecodePlaces([]byte(`{"search_results":[]}`))
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestDecodePlaces_Malformed(t *testing.T) {
	t.Parallel()

	_, err := DecodePlaces([]byte(`<html>`))
	require.Error(t, err)
}

func TestDecodeOrganic(t *testing.T) {
	t.Parallel()

	results, err := DecodeOrganic([]byte(`{"organic_results":[{"title":"Acme","link":"https://acme.com","snippet":"Visit us at 10 Downing Street"}]}`))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://acme.com", results[0].Link)
}
