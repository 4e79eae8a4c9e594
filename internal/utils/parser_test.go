package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/movielist/internal/model"
)

func TestParseMovieCSV(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []model.MovieEntry
	}{
		{name: "empty", text: "", want: []model.MovieEntry{}},
		{name: "blank lines", text: " \n \n", want: []model.MovieEntry{}},
		{name: "too few fields", text: "onlytwo,fields", want: []model.MovieEntry{}},
		{
			name: "two lines in order",
			text: "2024-01-01,Alien,http://a\n2024-01-02,Heat,http://h",
			want: []model.MovieEntry{
				{Title: "Alien", URL: "http://a"},
				{Title: "Heat", URL: "http://h"},
			},
		},
		{
			name: "crlf and padding",
			text: "  d , Alien , http://a  \r\n\r\n",
			want: []model.MovieEntry{{Title: "Alien", URL: "http://a"}},
		},
		{
			name: "extra fields ignored",
			text: "d,Alien,http://a,extra,more",
			want: []model.MovieEntry{{Title: "Alien", URL: "http://a"}},
		},
		{
			name: "empty title dropped",
			text: "d, ,http://a\nd,Heat,",
			want: []model.MovieEntry{{Title: "Heat", URL: ""}},
		},
		{
			name: "duplicates kept",
			text: "d,Alien,\nd,Alien,",
			want: []model.MovieEntry{{Title: "Alien"}, {Title: "Alien"}},
		},
		{
			name: "comma in title splits",
			text: "d,Crouching Tiger, Hidden Dragon,http://c",
			want: []model.MovieEntry{{Title: "Crouching Tiger", URL: "Hidden Dragon"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseMovieCSV(tt.text))
		})
	}
}

func TestParseMovieCSVReport(t *testing.T) {
	report := ParseMovieCSVReport("d,Alien,http://a\nbad line\n\nd,Heat,http://h\n")

	require.Len(t, report.Entries, 2)
	require.Equal(t, 3, report.Lines)
	require.Equal(t, 1, report.Dropped)
}
